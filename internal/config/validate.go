package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports credentials that are missing or still set to
// placeholders. It is fatal: callers must stop before any network call.
type ConfigurationError struct {
	Provider    string
	Missing     []string
	Remediation []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s credentials not set: %s", e.Provider, strings.Join(e.Missing, ", "))
}

// Validate checks the credentials the selected provider needs.
func (c *Config) Validate() error {
	var missing []string
	var remediation []string

	switch c.WhatsAppProvider {
	case "kapso":
		if isPlaceholder(c.KapsoAPIKey) {
			missing = append(missing, "KAPSO_API_KEY")
		}
		if isPlaceholder(c.KapsoPhoneNumberID) {
			missing = append(missing, "KAPSO_PHONE_NUMBER_ID")
		}
		if isPlaceholder(c.TestPhoneNumber) {
			missing = append(missing, "TEST_PHONE_NUMBER")
		}
		remediation = []string{
			"export KAPSO_API_KEY='your_kapso_api_key'",
			"export KAPSO_PHONE_NUMBER_ID='your_phone_number_id'",
			"export TEST_PHONE_NUMBER='+your_phone_number'",
		}
	case "twilio", "":
		if isPlaceholder(c.TwilioAccountSID) {
			missing = append(missing, "TWILIO_ACCOUNT_SID")
		}
		if isPlaceholder(c.TwilioAuthToken) {
			missing = append(missing, "TWILIO_AUTH_TOKEN")
		}
		if isPlaceholder(c.TwilioWhatsAppNumber) {
			missing = append(missing, "TWILIO_WHATSAPP_NUMBER")
		}
		if isPlaceholder(c.TestPhoneNumber) {
			missing = append(missing, "TEST_PHONE_NUMBER")
		}
		if c.TwilioValidateSignature && isPlaceholder(c.WebhookURL) {
			missing = append(missing, "WEBHOOK_URL")
		}
		remediation = []string{
			"Get your Account SID and Auth Token from https://console.twilio.com/",
			"export TWILIO_ACCOUNT_SID='your_account_sid'",
			"export TWILIO_AUTH_TOKEN='your_auth_token'",
			"export TWILIO_WHATSAPP_NUMBER='" + DefaultWhatsAppSandbox + "'",
			"export TEST_PHONE_NUMBER='whatsapp:+your_phone_number'",
			"Join the Twilio WhatsApp sandbox by sending 'join <sandbox-code>' to +1 415 523 8886",
		}
	default:
		return &ConfigurationError{
			Provider:    c.WhatsAppProvider,
			Missing:     []string{"WHATSAPP_PROVIDER"},
			Remediation: []string{"export WHATSAPP_PROVIDER='twilio' (or 'kapso')"},
		}
	}

	if len(missing) == 0 {
		return nil
	}
	provider := c.WhatsAppProvider
	if provider == "" {
		provider = "twilio"
	}
	return &ConfigurationError{Provider: provider, Missing: missing, Remediation: remediation}
}

func isPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	return strings.Contains(v, "your_") || strings.Contains(v, "your-")
}
