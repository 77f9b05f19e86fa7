package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

var twilioSendTracer = otel.Tracer("whatsapp.internal.messaging.twilio_send")

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSender creates messages through Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// TwilioOption customises a TwilioSender.
type TwilioOption func(*TwilioSender)

// WithTwilioBaseURL points the sender at another API host (tests, proxies).
func WithTwilioBaseURL(baseURL string) TwilioOption {
	return func(s *TwilioSender) {
		if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

// WithTwilioHTTPClient replaces the HTTP client.
func WithTwilioHTTPClient(client *http.Client) TwilioOption {
	return func(s *TwilioSender) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken string, logger *logging.Logger, opts ...TwilioOption) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Transport = (*TwilioSender)(nil)

// CreateMessage makes exactly one attempt and returns Twilio's message SID.
func (s *TwilioSender) CreateMessage(ctx context.Context, body, from, to string) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", &TransportError{Provider: ProviderTwilio, Message: "credentials missing"}
	}
	if strings.TrimSpace(body) == "" || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: body, from and to are required", ErrInvalidMessage)
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.create_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("whatsapp.to", to),
		attribute.Int("whatsapp.body_len", len(body)),
	)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		span.RecordError(err)
		return "", &TransportError{Provider: ProviderTwilio, Err: err}
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", &TransportError{Provider: ProviderTwilio, Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := parseTwilioError(resp.StatusCode, respBody)
		span.RecordError(terr)
		span.SetStatus(codes.Error, "provider rejected message")
		return "", terr
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.SID == "" {
		terr := &TransportError{Provider: ProviderTwilio, StatusCode: resp.StatusCode, Message: "response missing message sid"}
		span.RecordError(terr)
		return "", terr
	}
	span.SetAttributes(attribute.String("whatsapp.sid", parsed.SID))
	s.logger.Debug("twilio message created", "sid", parsed.SID, "status", parsed.Status, "to", to)
	return parsed.SID, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func parseTwilioError(status int, body []byte) *TransportError {
	terr := &TransportError{Provider: ProviderTwilio, StatusCode: status}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return terr
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		terr.Code = parsed.Code
		terr.Message = parsed.Message
		return terr
	}
	terr.Message = trimmed
	return terr
}
