package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want Script
	}{
		{"", ScriptLatin},
		{"   ", ScriptLatin},
		{"hello", ScriptLatin},
		{"Testing the bot functionality...", ScriptLatin},
		{"مرحباً", ScriptArabic},
		{"عن", ScriptArabic},
		{"projects / المشاريع", ScriptArabic},
		{"ﻻ", ScriptArabic},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text))
		})
	}
}

func TestIsRTL(t *testing.T) {
	assert.True(t, IsRTL("البوت يعمل بشكل صحيح!"))
	assert.False(t, IsRTL("The bot is working correctly!"))
}
