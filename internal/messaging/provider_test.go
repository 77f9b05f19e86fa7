package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

func TestBuildTransportTwilioDefault(t *testing.T) {
	transport, provider, reason := BuildTransport(ProviderSelectionConfig{
		TwilioAccountSID: "AC1",
		TwilioAuthToken:  "token",
	}, logging.Discard())
	if transport == nil || provider != ProviderTwilio || reason != "" {
		t.Fatalf("expected twilio transport, got %v %q %q", transport, provider, reason)
	}
	if _, ok := transport.(*TwilioSender); !ok {
		t.Fatalf("expected *TwilioSender, got %T", transport)
	}
}

func TestBuildTransportKapso(t *testing.T) {
	transport, provider, _ := BuildTransport(ProviderSelectionConfig{
		Preference:         "KAPSO",
		KapsoAPIKey:        "key",
		KapsoPhoneNumberID: "123",
	}, logging.Discard())
	if _, ok := transport.(*KapsoSender); !ok || provider != ProviderKapso {
		t.Fatalf("expected kapso transport, got %T %q", transport, provider)
	}
}

func TestBuildTransportMissingCredentials(t *testing.T) {
	transport, provider, reason := BuildTransport(ProviderSelectionConfig{Preference: ProviderTwilio}, logging.Discard())
	if transport != nil || provider != "" {
		t.Fatalf("expected no transport, got %T %q", transport, provider)
	}
	if !strings.Contains(reason, "TWILIO_ACCOUNT_SID missing") || !strings.Contains(reason, "TWILIO_AUTH_TOKEN missing") {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestBuildTransportUnknown(t *testing.T) {
	_, _, reason := BuildTransport(ProviderSelectionConfig{Preference: "telegraph"}, logging.Discard())
	if !strings.Contains(reason, "telegraph") {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestTransportFunc(t *testing.T) {
	var gotFrom string
	fn := TransportFunc(func(_ context.Context, body, from, to string) (string, error) {
		gotFrom = from
		return "SM" + body, nil
	})
	sid, err := fn.CreateMessage(context.Background(), "1", "whatsapp:+1", "whatsapp:+2")
	if err != nil || sid != "SM1" || gotFrom != "whatsapp:+1" {
		t.Fatalf("unexpected result %q %v %q", sid, err, gotFrom)
	}
}

func TestRecipientAddress(t *testing.T) {
	if got := RecipientAddress(ProviderTwilio, "+1 555 123 4567"); got != "whatsapp:+15551234567" {
		t.Fatalf("unexpected twilio recipient %q", got)
	}
	if got := RecipientAddress(ProviderKapso, "whatsapp:+15551234567"); got != "+15551234567" {
		t.Fatalf("unexpected kapso recipient %q", got)
	}
}
