package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

var kapsoSendTracer = otel.Tracer("whatsapp.internal.messaging.kapso_send")

const defaultKapsoBaseURL = "https://api.kapso.ai/meta/whatsapp/v24.0"

// KapsoSender sends WhatsApp text messages through Kapso's Meta Cloud API proxy.
// The from address is implied by the phone number id.
type KapsoSender struct {
	apiKey        string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	logger        *logging.Logger
}

// NewKapsoSender builds a Kapso sender. An empty baseURL selects the public API.
func NewKapsoSender(apiKey, phoneNumberID, baseURL string, logger *logging.Logger) *KapsoSender {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultKapsoBaseURL
	}
	return &KapsoSender{
		apiKey:        apiKey,
		phoneNumberID: phoneNumberID,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

var _ Transport = (*KapsoSender)(nil)

type kapsoSendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             kapsoTextContent `json:"text"`
}

type kapsoTextContent struct {
	Body string `json:"body"`
}

type kapsoSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CreateMessage sends body to the recipient and returns the WhatsApp message id.
func (s *KapsoSender) CreateMessage(ctx context.Context, body, _ string, to string) (string, error) {
	if s.apiKey == "" || s.phoneNumberID == "" {
		return "", &TransportError{Provider: ProviderKapso, Message: "credentials missing"}
	}
	recipient := strings.TrimPrefix(NormalizeE164(to), "+")
	if strings.TrimSpace(body) == "" || recipient == "" {
		return "", fmt.Errorf("%w: body and to are required", ErrInvalidMessage)
	}

	ctx, span := kapsoSendTracer.Start(ctx, "messaging.kapso.send_text")
	defer span.End()
	span.SetAttributes(attribute.String("whatsapp.to", recipient))

	payload, err := json.Marshal(kapsoSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
		Type:             "text",
		Text:             kapsoTextContent{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("messaging: marshal kapso request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Provider: ProviderKapso, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", &TransportError{Provider: ProviderKapso, Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))

	var parsed kapsoSendResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		terr := &TransportError{Provider: ProviderKapso, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		if parsed.Error != nil {
			terr.Code = parsed.Error.Code
			terr.Message = parsed.Error.Message
		}
		span.RecordError(terr)
		return "", terr
	}
	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		terr := &TransportError{Provider: ProviderKapso, StatusCode: resp.StatusCode, Message: "response missing message id"}
		span.RecordError(terr)
		return "", terr
	}
	id := parsed.Messages[0].ID
	s.logger.Debug("kapso message sent", "id", id, "to", recipient)
	return id, nil
}
