// Package report renders harness progress and the end-of-run summary for the
// operator's terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/whatsapp-test-harness/internal/config"
	"github.com/wolfman30/whatsapp-test-harness/internal/harness"
	"github.com/wolfman30/whatsapp-test-harness/internal/lang"
	"github.com/wolfman30/whatsapp-test-harness/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
)

var _ harness.Observer = (*Console)(nil)
var _ harness.Reporter = (*Console)(nil)

const previewLen = 60

// Console writes human-readable lines to w. Safe for concurrent use.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	gatherer prometheus.Gatherer

	success *color.Color
	failure *color.Color
	info    *color.Color
	warn    *color.Color
	header  *color.Color
}

// Option configures a Console.
type Option func(*Console)

// WithGatherer adds a per-script breakdown to the summary, read from the
// harness metrics registered on g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Console) { c.gatherer = g }
}

// NewConsole returns a console writing to w. Colour escapes are emitted only
// when colored is true.
func NewConsole(w io.Writer, colored bool, opts ...Option) *Console {
	c := &Console{
		w:       w,
		success: color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		header:  color.New(color.FgWhite, color.Bold),
	}
	for _, col := range []*color.Color{c.success, c.failure, c.info, c.warn, c.header} {
		if colored {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Banner announces the run before the first send.
func (c *Console) Banner(provider, to, webhookURL string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header.Fprintln(c.w, "🚀 Starting WhatsApp message test")
	fmt.Fprintf(c.w, "Provider:  %s\n", provider)
	fmt.Fprintf(c.w, "Recipient: %s\n", to)
	if webhookURL != "" {
		fmt.Fprintf(c.w, "Webhook:   %s\n", webhookURL)
	}
	fmt.Fprintf(c.w, "Messages:  %d\n", total)
}

// PhaseStarted prints a phase header.
func (c *Console) PhaseStarted(name string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	c.header.Fprintf(c.w, "=== Phase %s: %d messages ===\n", name, count)
}

// Sending prints the body about to be sent.
func (c *Console) Sending(index, total int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Fprintf(c.w, "📤 [%d/%d] Sending: %s\n", index, total, display(body))
}

// Sent prints the accepted message SID.
func (c *Console) Sent(attempt runlog.OutboundAttempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.success.Fprintf(c.w, "✅ Message sent! SID: %s\n", attempt.SID)
}

// Failed prints the transport error.
func (c *Console) Failed(attempt runlog.OutboundAttempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure.Fprintf(c.w, "❌ Failed to send message: %s\n", attempt.Error)
}

// Received prints an inbound message with its sender.
func (c *Console) Received(event runlog.InboundEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := event.From
	if from == "" {
		from = "(unknown sender)"
	}
	c.info.Fprintf(c.w, "📥 Received from %s: %s\n", from, display(event.Body))
}

// Summary prints totals, the error list, and where the results were written.
func (c *Console) Summary(rep runlog.Report, path string, persistErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w)
	c.header.Fprintln(c.w, "📊 Test Results Summary")
	fmt.Fprintln(c.w, strings.Repeat("=", 40))
	fmt.Fprintf(c.w, "Messages sent:     %d\n", rep.Sent)
	fmt.Fprintf(c.w, "Messages received: %d\n", rep.Received)
	fmt.Fprintf(c.w, "Send failures:     %d\n", rep.Errored)
	fmt.Fprintf(c.w, "Errors recorded:   %d\n", len(rep.Errors))

	c.writeBreakdown()

	if len(rep.Errors) > 0 {
		fmt.Fprintln(c.w)
		c.warn.Fprintln(c.w, "Errors:")
		for _, rec := range rep.Errors {
			fmt.Fprintf(c.w, "  - [%s] %s (message: %s)\n", rec.Kind, rec.Error, preview(rec.Message))
		}
	}

	fmt.Fprintln(c.w)
	switch {
	case rep.Sent == 0 && rep.Errored > 0:
		c.failure.Fprintln(c.w, "❌ No messages were sent")
	case rep.Errored > 0:
		c.warn.Fprintf(c.w, "⚠️  %d of %d messages failed\n", rep.Errored, rep.Sent+rep.Errored)
	case rep.Sent > 0:
		c.success.Fprintln(c.w, "✅ All messages sent")
	}
	if rep.Received == 0 {
		c.warn.Fprintln(c.w, "⚠️  No replies received; check that the webhook URL reaches this listener")
	}
	if persistErr != nil {
		c.failure.Fprintf(c.w, "❌ Results could not be written to %s: %v\n", path, persistErr)
		return
	}
	fmt.Fprintf(c.w, "💾 Results saved to: %s\n", path)
}

func (c *Console) writeBreakdown() {
	byScript, err := metrics.OutboundByScript(c.gatherer)
	if err != nil || len(byScript) == 0 {
		return
	}
	scripts := make([]string, 0, len(byScript))
	for s := range byScript {
		scripts = append(scripts, s)
	}
	sort.Strings(scripts)
	fmt.Fprintln(c.w)
	for _, s := range scripts {
		counts := byScript[s]
		label := s
		if lang.Script(s) == lang.ScriptArabic {
			label += " (rtl)"
		}
		fmt.Fprintf(c.w, "  %-14s sent %d, failed %d\n", label,
			counts[string(runlog.OutcomeSent)], counts[string(runlog.OutcomeFailed)])
	}
}

// ConfigError explains which credentials are missing and how to set them.
func (c *Console) ConfigError(err *config.ConfigurationError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure.Fprintf(c.w, "❌ Please set your %s credentials first!\n", err.Provider)
	fmt.Fprintf(c.w, "Missing: %s\n\n", strings.Join(err.Missing, ", "))
	for _, line := range err.Remediation {
		fmt.Fprintf(c.w, "  %s\n", line)
	}
}

// SenderSummary prints the one-shot sender's verdict.
func (c *Console) SenderSummary(success, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	c.header.Fprintf(c.w, "📊 Results: %d/%d messages sent successfully\n", success, total)
	switch {
	case total > 0 && success == total:
		c.success.Fprintln(c.w, "✅ All messages sent! Check your WhatsApp.")
	case success > 0:
		c.warn.Fprintln(c.w, "⚠️  Some messages failed. Check the errors above.")
	default:
		c.failure.Fprintln(c.w, "❌ No messages were sent. Check your credentials.")
	}
}

// display isolates right-to-left bodies so they do not reorder the rest of
// the line in bidi-aware terminals.
func display(s string) string {
	p := preview(s)
	if lang.IsRTL(p) {
		return "\u2067" + p + "\u2069"
	}
	return p
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
