// Package lang classifies message bodies by writing script so the harness can
// report how right-to-left bodies fared separately from Latin ones.
package lang

import (
	"strings"
	"unicode"
)

// Script is a coarse writing-system label.
type Script string

const (
	ScriptLatin  Script = "latin"
	ScriptArabic Script = "arabic"
)

// arabicRanges covers Arabic, Arabic Supplement, Arabic Extended-A and the
// presentation forms.
var arabicRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06FF, Stride: 1},
		{Lo: 0x0750, Hi: 0x077F, Stride: 1},
		{Lo: 0x08A0, Hi: 0x08FF, Stride: 1},
		{Lo: 0xFB50, Hi: 0xFDFF, Stride: 1},
		{Lo: 0xFE70, Hi: 0xFEFF, Stride: 1},
	},
}

// Detect returns ScriptArabic when text contains any Arabic code point and
// ScriptLatin otherwise, including for empty text.
func Detect(text string) Script {
	if strings.TrimSpace(text) == "" {
		return ScriptLatin
	}
	for _, r := range text {
		if unicode.Is(arabicRanges, r) {
			return ScriptArabic
		}
	}
	return ScriptLatin
}

// IsRTL reports whether text is written in a right-to-left script.
func IsRTL(text string) bool {
	return Detect(text) == ScriptArabic
}
