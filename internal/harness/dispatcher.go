package harness

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/whatsapp-test-harness/internal/lang"
	"github.com/wolfman30/whatsapp-test-harness/internal/messaging"
	"github.com/wolfman30/whatsapp-test-harness/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

// Dispatcher sends scripted bodies one at a time through a Transport and
// records every attempt in the RunLog.
type Dispatcher struct {
	transport messaging.Transport
	provider  string
	from      string
	log       *runlog.RunLog
	logger    *logging.Logger
	metrics   *metrics.HarnessMetrics
	observer  Observer
	timeout   time.Duration
	sleep     func(context.Context, time.Duration) error
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Transport messaging.Transport
	Provider  string
	From      string
	Log       *runlog.RunLog
	Logger    *logging.Logger
	Metrics   *metrics.HarnessMetrics
	Observer  Observer

	// SendTimeout bounds each CreateMessage call. Zero means no extra bound.
	SendTimeout time.Duration
}

// NewDispatcher builds a dispatcher. Transport and Log are required.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Transport == nil {
		panic("harness: transport cannot be nil")
	}
	if cfg.Log == nil {
		panic("harness: run log cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Dispatcher{
		transport: cfg.Transport,
		provider:  cfg.Provider,
		from:      cfg.From,
		log:       cfg.Log,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		observer:  cfg.Observer,
		timeout:   cfg.SendTimeout,
		sleep:     sleepContext,
	}
}

// Send makes one attempt to deliver body to `to`. The outcome is always
// recorded; the returned error is informational.
func (d *Dispatcher) Send(ctx context.Context, body, to string) (string, error) {
	script := string(lang.Detect(body))
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	sid, err := d.transport.CreateMessage(sendCtx, body, d.from, to)
	d.metrics.ObserveSendLatency(d.provider, time.Since(start).Seconds())

	if err != nil {
		attempt := d.log.RecordFailed(body, to, err)
		d.metrics.ObserveOutbound(d.provider, string(runlog.OutcomeFailed), script)
		args := []any{"error", err, "to", to, "script", script}
		var terr *messaging.TransportError
		if errors.As(err, &terr) {
			args = append(args, "status_code", terr.StatusCode, "retryable", terr.Retryable())
		}
		d.logger.Error("failed to send message", args...)
		d.observer.Failed(attempt)
		return "", err
	}

	attempt := d.log.RecordSent(body, to, sid)
	d.metrics.ObserveOutbound(d.provider, string(runlog.OutcomeSent), script)
	d.logger.Info("message sent", "sid", sid, "to", to, "script", script)
	d.observer.Sent(attempt)
	return sid, nil
}

// Run sends every message of the script in order, waiting the phase delay
// after each send except the last one. It returns early only when ctx is
// cancelled; transport failures never stop the sequence.
func (d *Dispatcher) Run(ctx context.Context, script Script, to string) error {
	total := script.Len()
	index := 0
	for _, phase := range script.Phases {
		d.observer.PhaseStarted(phase.Name, len(phase.Messages))
		d.logger.Info("dispatch phase started", "phase", phase.Name, "messages", len(phase.Messages))
		for _, body := range phase.Messages {
			if err := ctx.Err(); err != nil {
				return err
			}
			index++
			d.observer.Sending(index, total, body)
			_, _ = d.Send(ctx, body, to)
			if index < total {
				if err := d.sleep(ctx, time.Duration(phase.Delay)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
