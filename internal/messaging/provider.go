package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

const (
	// ProviderTwilio sends through Twilio's WhatsApp channel.
	ProviderTwilio = "twilio"
	// ProviderKapso sends through Kapso's WhatsApp Cloud API proxy.
	ProviderKapso = "kapso"
)

// Transport is the capability the harness needs from a messaging provider:
// deliver one message and return the provider-assigned id.
type Transport interface {
	CreateMessage(ctx context.Context, body, from, to string) (string, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, body, from, to string) (string, error)

func (f TransportFunc) CreateMessage(ctx context.Context, body, from, to string) (string, error) {
	return f(ctx, body, from, to)
}

// ProviderSelectionConfig captures the credentials required to build a transport.
type ProviderSelectionConfig struct {
	Preference         string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioAPIBaseURL   string
	KapsoAPIKey        string
	KapsoPhoneNumberID string
	KapsoAPIBaseURL    string
}

// BuildTransport instantiates the preferred provider's transport.
// It returns the transport, the provider that was selected, and a reason when
// no provider could be initialized.
func BuildTransport(cfg ProviderSelectionConfig, logger *logging.Logger) (Transport, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = ProviderTwilio
	}

	switch preference {
	case ProviderTwilio:
		var reasons []string
		if cfg.TwilioAccountSID == "" {
			reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
		}
		if cfg.TwilioAuthToken == "" {
			reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
		}
		if len(reasons) > 0 {
			return nil, "", strings.Join(reasons, ", ")
		}
		return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger, WithTwilioBaseURL(cfg.TwilioAPIBaseURL)), ProviderTwilio, ""
	case ProviderKapso:
		var reasons []string
		if cfg.KapsoAPIKey == "" {
			reasons = append(reasons, "KAPSO_API_KEY missing")
		}
		if cfg.KapsoPhoneNumberID == "" {
			reasons = append(reasons, "KAPSO_PHONE_NUMBER_ID missing")
		}
		if len(reasons) > 0 {
			return nil, "", strings.Join(reasons, ", ")
		}
		return NewKapsoSender(cfg.KapsoAPIKey, cfg.KapsoPhoneNumberID, cfg.KapsoAPIBaseURL, logger), ProviderKapso, ""
	default:
		return nil, "", fmt.Sprintf("unknown provider %q", preference)
	}
}

// RecipientAddress formats a recipient for the selected provider.
func RecipientAddress(provider, value string) string {
	if provider == ProviderTwilio {
		return WhatsAppAddress(value)
	}
	return NormalizeE164(value)
}
