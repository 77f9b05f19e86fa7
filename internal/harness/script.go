package harness

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Phase is an ordered group of bodies sent with the same inter-message delay.
type Phase struct {
	Name     string   `toml:"name"`
	Delay    Duration `toml:"delay"`
	Messages []string `toml:"messages"`
}

// Script is the full ordered schedule for one run.
type Script struct {
	Phases []Phase `toml:"phase"`
}

// Duration decodes TOML strings like "2s" and bare integers as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("harness: invalid duration %q", s)
}

// Len is the number of scheduled outbound messages.
func (s Script) Len() int {
	n := 0
	for _, p := range s.Phases {
		n += len(p.Messages)
	}
	return n
}

// DefaultScript returns the basic and retrieval question phases of the
// bilingual smoke test.
func DefaultScript(sendDelay, ragDelay time.Duration) Script {
	return Script{Phases: []Phase{
		{
			Name:  "basic",
			Delay: Duration(sendDelay),
			Messages: []string{
				"Hello! This is a test message from the WhatsApp Web bot.",
				"مرحباً! هذه رسالة تجريبية من بوت واتساب ويب.",
				"about",
				"projects",
				"عن",
				"What services do you offer?",
				"ما هي الخدمات التي تقدمونها؟",
			},
		},
		{
			Name:  "rag",
			Delay: Duration(ragDelay),
			Messages: []string{
				"Tell me about your company",
				"What industries do you serve?",
				"How can I find a job?",
				"What is your experience?",
				"عرفني عن شركتكم",
				"ما هي الصناعات التي تخدمونها؟",
				"كيف يمكنني العثور على وظيفة؟",
			},
		},
	}}
}

// SenderMessages are the bodies the standalone sender delivers.
func SenderMessages() []string {
	return []string{
		"Hello! This is a test message from the WhatsApp bot.",
		"مرحباً! هذه رسالة تجريبية من بوت الواتساب.",
		"Testing the bot functionality...",
		"اختبار وظائف البوت...",
		"The bot is working correctly!",
		"البوت يعمل بشكل صحيح!",
	}
}

// LoadScript decodes a TOML script file. Phases without a delay get
// defaultDelay; empty bodies are rejected.
//
//	[[phase]]
//	name = "smoke"
//	delay = "2s"
//	messages = ["hello", "مرحباً"]
func LoadScript(path string, defaultDelay time.Duration) (Script, error) {
	var script Script
	if _, err := toml.DecodeFile(path, &script); err != nil {
		return Script{}, fmt.Errorf("harness: decode script %s: %w", path, err)
	}
	if err := script.normalize(defaultDelay); err != nil {
		return Script{}, fmt.Errorf("harness: script %s: %w", path, err)
	}
	return script, nil
}

func (s *Script) normalize(defaultDelay time.Duration) error {
	if len(s.Phases) == 0 {
		return errors.New("no phases defined")
	}
	for i := range s.Phases {
		p := &s.Phases[i]
		if p.Name == "" {
			p.Name = fmt.Sprintf("phase-%d", i+1)
		}
		if p.Delay <= 0 {
			p.Delay = Duration(defaultDelay)
		}
		if len(p.Messages) == 0 {
			return fmt.Errorf("phase %q has no messages", p.Name)
		}
		for j, body := range p.Messages {
			if strings.TrimSpace(body) == "" {
				return fmt.Errorf("phase %q message %d is empty", p.Name, j+1)
			}
		}
	}
	return nil
}
