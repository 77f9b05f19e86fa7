package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Placeholder values shipped as defaults. A run refuses to start while any
// credential still holds one of these.
const (
	PlaceholderAccountSID  = "your_twilio_account_sid"
	PlaceholderAuthToken   = "your_twilio_auth_token"
	PlaceholderTestPhone   = "whatsapp:+your_phone_number"
	PlaceholderWebhookURL  = "https://your-ngrok-url.ngrok.io/webhook"
	DefaultWhatsAppSandbox = "whatsapp:+14155238886"
)

// Config holds harness configuration
type Config struct {
	Env      string
	LogLevel string

	WhatsAppProvider string

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppNumber    string
	TwilioValidateSignature bool
	TwilioAPIBaseURL        string

	KapsoAPIKey        string
	KapsoPhoneNumberID string
	KapsoAPIBaseURL    string

	TestPhoneNumber string
	WebhookURL      string
	ListenAddr      string

	SendDelay    time.Duration
	RAGSendDelay time.Duration
	StartupWait  time.Duration
	DrainWait    time.Duration
	SendTimeout  time.Duration

	ScriptFile  string
	ResultsPath string

	ResultsS3Bucket     string
	ResultsS3Prefix     string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WhatsAppProvider: strings.ToLower(strings.TrimSpace(getEnv("WHATSAPP_PROVIDER", "twilio"))),

		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", PlaceholderAccountSID),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", PlaceholderAuthToken),
		TwilioWhatsAppNumber:    getEnv("TWILIO_WHATSAPP_NUMBER", DefaultWhatsAppSandbox),
		TwilioValidateSignature: getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", false),
		TwilioAPIBaseURL:        getEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),

		KapsoAPIKey:        getEnv("KAPSO_API_KEY", ""),
		KapsoPhoneNumberID: getEnv("KAPSO_PHONE_NUMBER_ID", ""),
		KapsoAPIBaseURL:    getEnv("KAPSO_API_BASE_URL", "https://api.kapso.ai/meta/whatsapp/v24.0"),

		TestPhoneNumber: getEnv("TEST_PHONE_NUMBER", PlaceholderTestPhone),
		WebhookURL:      getEnv("WEBHOOK_URL", PlaceholderWebhookURL),
		ListenAddr:      getEnv("LISTEN_ADDR", ":5000"),

		SendDelay:    getEnvAsDuration("SEND_DELAY", 2*time.Second),
		RAGSendDelay: getEnvAsDuration("RAG_SEND_DELAY", 3*time.Second),
		StartupWait:  getEnvAsDuration("STARTUP_WAIT", 2*time.Second),
		DrainWait:    getEnvAsDuration("DRAIN_WAIT", 10*time.Second),
		SendTimeout:  getEnvAsDuration("SEND_TIMEOUT", 10*time.Second),

		ScriptFile:  getEnv("SCRIPT_FILE", ""),
		ResultsPath: getEnv("RESULTS_PATH", "test_results.json"),

		ResultsS3Bucket:     getEnv("RESULTS_S3_BUCKET", ""),
		ResultsS3Prefix:     getEnv("RESULTS_S3_PREFIX", "whatsapp-harness"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	// Bare integers are seconds, matching the sleep() values operators are used to.
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
