package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

func TestKapsoSenderCreateMessage(t *testing.T) {
	var got kapsoSendRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	sender := NewKapsoSender("key", "12345", srv.URL, logging.Discard())
	id, err := sender.CreateMessage(context.Background(), "اختبار وظائف البوت...", "", "whatsapp:+1 555 123 4567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "wamid.ABC" {
		t.Fatalf("unexpected id %s", id)
	}
	if gotKey != "key" || gotPath != "/12345/messages" {
		t.Fatalf("unexpected request key=%s path=%s", gotKey, gotPath)
	}
	if got.To != "15551234567" || got.Text.Body != "اختبار وظائف البوت..." || got.Type != "text" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestKapsoSenderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":190,"message":"Invalid OAuth access token"}}`))
	}))
	defer srv.Close()

	sender := NewKapsoSender("key", "12345", srv.URL, logging.Discard())
	_, err := sender.CreateMessage(context.Background(), "hello", "", "+15551234567")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Provider != ProviderKapso || terr.StatusCode != http.StatusUnauthorized || terr.Code != 190 {
		t.Fatalf("unexpected error %+v", terr)
	}
	if terr.Retryable() {
		t.Fatal("401 must not be retryable")
	}
}

func TestKapsoSenderMissingCredentials(t *testing.T) {
	sender := NewKapsoSender("", "", "", logging.Discard())
	if _, err := sender.CreateMessage(context.Background(), "hello", "", "+1555"); err == nil {
		t.Fatal("expected error")
	}
}
