package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	httpmiddleware "github.com/wolfman30/whatsapp-test-harness/internal/http/middleware"
	"github.com/wolfman30/whatsapp-test-harness/internal/lang"
	"github.com/wolfman30/whatsapp-test-harness/internal/messaging"
	"github.com/wolfman30/whatsapp-test-harness/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

var listenerTracer = otel.Tracer("whatsapp.internal.harness.listener")

// ErrListenerRunning is returned by Start on a listener that is already serving.
var ErrListenerRunning = errors.New("harness: listener already running")

// ListenerConfig wires a Listener.
type ListenerConfig struct {
	Addr   string
	Log    *runlog.RunLog
	Logger *logging.Logger

	Metrics  *metrics.HarnessMetrics
	Gatherer prometheus.Gatherer
	Observer Observer
	Feed     *Feed

	// When AuthToken is set, callbacks must carry a valid X-Twilio-Signature
	// computed over WebhookURL.
	AuthToken  string
	WebhookURL string
}

// Listener accepts provider callbacks for inbound messages.
type Listener struct {
	cfg     ListenerConfig
	handler http.Handler

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	done chan error
}

// NewListener builds a listener. Log is required.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Log == nil {
		panic("harness: run log cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":5000"
	}
	l := &Listener{cfg: cfg}
	l.handler = l.routes()
	return l
}

func (l *Listener) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(l.cfg.Logger))

	r.Post("/webhook", l.Webhook)
	r.Get("/health", l.HealthCheck)
	if l.cfg.Feed != nil {
		r.Get("/events", l.cfg.Feed.ServeHTTP)
	}
	if l.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(l.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler exposes the router, mainly for httptest.
func (l *Listener) Handler() http.Handler {
	return l.handler
}

// Start binds the address and serves in the background. It returns once the
// socket is listening, so callbacks can be delivered immediately after.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.srv != nil {
		return ErrListenerRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("harness: listen %s: %w", l.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	l.srv, l.ln, l.done = srv, ln, done
	l.cfg.Logger.Info("webhook listener started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" when not running.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Stop shuts the server down, waiting for in-flight callbacks until ctx expires.
// Stopping a listener that is not running is a no-op.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	srv, done := l.srv, l.done
	l.srv, l.ln, l.done = nil, nil, nil
	l.mu.Unlock()
	if srv == nil {
		return nil
	}

	// Hijacked feed connections are not tracked by Shutdown.
	if l.cfg.Feed != nil {
		l.cfg.Feed.Close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("harness: listener shutdown: %w", err)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("harness: listener serve: %w", err)
	}
	l.cfg.Logger.Info("webhook listener stopped")
	return nil
}

// Webhook handles POST /webhook. Every request that passes signature
// validation becomes exactly one InboundEvent and gets an empty TwiML reply.
func (l *Listener) Webhook(w http.ResponseWriter, r *http.Request) {
	_, span := listenerTracer.Start(r.Context(), "harness.webhook")
	defer span.End()
	start := time.Now()
	defer func() {
		l.cfg.Metrics.ObserveWebhookLatency(time.Since(start).Seconds())
	}()

	if l.cfg.AuthToken != "" && !messaging.ValidateTwilioSignature(r, l.cfg.AuthToken, l.cfg.WebhookURL) {
		l.cfg.Logger.Warn("invalid twilio signature", "remote_ip", r.RemoteAddr)
		l.cfg.Metrics.ObserveInbound("rejected")
		span.RecordError(errors.New("invalid twilio signature"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	msg, extractErr := messaging.ParseInboundMessage(r)
	status := "ok"
	if extractErr != nil {
		status = "partial"
		span.RecordError(extractErr)
		l.cfg.Logger.Warn("inbound callback extraction incomplete", "error", extractErr)
	}
	event := l.cfg.Log.RecordReceived(msg.Body, msg.From, extractErr)
	l.cfg.Metrics.ObserveInbound(status)
	span.SetAttributes(
		attribute.String("whatsapp.from", msg.From),
		attribute.String("whatsapp.message_sid", msg.MessageSid),
	)
	l.cfg.Logger.Info("message received",
		"from", msg.From,
		"message_sid", msg.MessageSid,
		"script", string(lang.Detect(msg.Body)),
	)
	l.cfg.Observer.Received(event)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(messaging.EmptyTwiML))
}

// HealthCheck returns a simple health check response.
func (l *Listener) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
