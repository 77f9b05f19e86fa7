package bootstrap

import (
	appconfig "github.com/wolfman30/whatsapp-test-harness/internal/config"
	"github.com/wolfman30/whatsapp-test-harness/internal/messaging"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

// TransportFactory builds the outbound transport for a validated config. It
// returns the transport, the selected provider, and a reason on failure.
type TransportFactory func(cfg *appconfig.Config, logger *logging.Logger) (messaging.Transport, string, string)

// BuildTransport creates the provider transport selected by WHATSAPP_PROVIDER.
func BuildTransport(cfg *appconfig.Config, logger *logging.Logger) (messaging.Transport, string, string) {
	if cfg == nil {
		return nil, "", "missing config"
	}
	return messaging.BuildTransport(messaging.ProviderSelectionConfig{
		Preference:         cfg.WhatsAppProvider,
		TwilioAccountSID:   cfg.TwilioAccountSID,
		TwilioAuthToken:    cfg.TwilioAuthToken,
		TwilioAPIBaseURL:   cfg.TwilioAPIBaseURL,
		KapsoAPIKey:        cfg.KapsoAPIKey,
		KapsoPhoneNumberID: cfg.KapsoPhoneNumberID,
		KapsoAPIBaseURL:    cfg.KapsoAPIBaseURL,
	}, logger)
}

// Addresses returns the sender and recipient in the form the provider expects.
func Addresses(cfg *appconfig.Config, provider string) (from, to string) {
	to = messaging.RecipientAddress(provider, cfg.TestPhoneNumber)
	if provider == messaging.ProviderTwilio {
		from = messaging.WhatsAppAddress(cfg.TwilioWhatsAppNumber)
	}
	return from, to
}
