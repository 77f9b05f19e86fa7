package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// EmptyTwiML is the no-op acknowledgment Twilio expects from a messaging webhook.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// ValidateTwilioSignature validates that a request came from Twilio
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted key/value pairs.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// InboundMessage is the subset of a Twilio messaging callback the harness keeps.
type InboundMessage struct {
	MessageSid string
	From       string
	To         string
	Body       string
}

// ParseInboundMessage extracts Body and From from a Twilio callback. It never
// drops a message: when the form cannot be parsed the returned message has
// whatever fields were readable (possibly none) and the error says why.
func ParseInboundMessage(r *http.Request) (InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		// ParseForm may still have populated part of the form.
		return inboundFromValues(r.Form), &ExtractionError{Err: err}
	}
	msg := inboundFromValues(r.Form)
	var missing []string
	if _, ok := r.Form["Body"]; !ok {
		missing = append(missing, "Body")
	}
	if _, ok := r.Form["From"]; !ok {
		missing = append(missing, "From")
	}
	if len(missing) > 0 {
		return msg, &ExtractionError{Missing: missing}
	}
	return msg, nil
}

func inboundFromValues(values url.Values) InboundMessage {
	if values == nil {
		return InboundMessage{}
	}
	return InboundMessage{
		MessageSid: values.Get("MessageSid"),
		From:       values.Get("From"),
		To:         values.Get("To"),
		Body:       values.Get("Body"),
	}
}
