package messaging

import "strings"

// WhatsAppPrefix marks a Twilio address as a WhatsApp channel address.
const WhatsAppPrefix = "whatsapp:"

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(StripChannelPrefix(value))
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// WhatsAppAddress returns value as a Twilio WhatsApp address
// ("whatsapp:+15551234567"). Values that already carry the prefix are kept.
func WhatsAppAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(value), WhatsAppPrefix) {
		return value
	}
	if e164 := NormalizeE164(value); e164 != "" {
		return WhatsAppPrefix + e164
	}
	return WhatsAppPrefix + value
}

// StripChannelPrefix removes a "whatsapp:" style channel prefix.
func StripChannelPrefix(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.Index(value, ":"); i >= 0 && !strings.HasPrefix(value, "+") {
		return value[i+1:]
	}
	return value
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
