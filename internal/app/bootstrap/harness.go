package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/whatsapp-test-harness/internal/config"
	"github.com/wolfman30/whatsapp-test-harness/internal/harness"
	"github.com/wolfman30/whatsapp-test-harness/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-test-harness/internal/report"
	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitConfig  = 1
	ExitFailure = 2
)

// Options carries the process-level dependencies of a run.
type Options struct {
	Out          io.Writer
	Colored      bool
	Logger       *logging.Logger
	Registry     *prometheus.Registry
	NewTransport TransportFactory
	Sink         harness.ResultSink
}

func (o Options) withDefaults() Options {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	if o.NewTransport == nil {
		o.NewTransport = BuildTransport
	}
	return o
}

type pipeline struct {
	dispatcher *harness.Dispatcher
	log        *runlog.RunLog
	metrics    *metrics.HarnessMetrics
	recipient  string
}

// preflight validates credentials and builds the transport. Nothing touches
// the network unless it succeeds; a nil pipeline means the run must stop.
func preflight(cfg *appconfig.Config, opts Options, observer harness.Observer, console *report.Console) *pipeline {
	if err := cfg.Validate(); err != nil {
		var cfgErr *appconfig.ConfigurationError
		if errors.As(err, &cfgErr) {
			console.ConfigError(cfgErr)
		}
		opts.Logger.Error("configuration invalid", "error", err)
		return nil
	}

	transport, provider, reason := opts.NewTransport(cfg, opts.Logger)
	if transport == nil {
		opts.Logger.Error("messaging transport unavailable", "reason", reason)
		return nil
	}
	from, to := Addresses(cfg, provider)

	log := runlog.New()
	m := metrics.NewHarnessMetrics(opts.Registry)
	dispatcher := harness.NewDispatcher(harness.DispatcherConfig{
		Transport:   transport,
		Provider:    provider,
		From:        from,
		Log:         log,
		Logger:      opts.Logger.With("component", "dispatcher"),
		Metrics:     m,
		Observer:    observer,
		SendTimeout: cfg.SendTimeout,
	})
	opts.Logger.Info("messaging transport selected", "provider", provider, "from", from, "to", to)
	return &pipeline{dispatcher: dispatcher, log: log, metrics: m, recipient: to}
}

// RunTest performs a full exchange run: listener, scripted dispatch, drain,
// and report. It returns the process exit code.
func RunTest(ctx context.Context, cfg *appconfig.Config, opts Options) int {
	opts = opts.withDefaults()
	console := report.NewConsole(opts.Out, opts.Colored, report.WithGatherer(opts.Registry))

	feed := harness.NewFeed(opts.Logger.With("component", "feed"))
	observer := harness.MultiObserver(console, feed)
	p := preflight(cfg, opts, observer, console)
	if p == nil {
		return ExitConfig
	}

	script := harness.DefaultScript(cfg.SendDelay, cfg.RAGSendDelay)
	if cfg.ScriptFile != "" {
		loaded, err := harness.LoadScript(cfg.ScriptFile, cfg.SendDelay)
		if err != nil {
			opts.Logger.Error("failed to load script", "error", err)
			return ExitConfig
		}
		script = loaded
	}

	listenerCfg := harness.ListenerConfig{
		Addr:     cfg.ListenAddr,
		Log:      p.log,
		Logger:   opts.Logger.With("component", "listener"),
		Metrics:  p.metrics,
		Gatherer: opts.Registry,
		Observer: observer,
		Feed:     feed,
	}
	if cfg.TwilioValidateSignature {
		listenerCfg.AuthToken = cfg.TwilioAuthToken
		listenerCfg.WebhookURL = cfg.WebhookURL
	}

	runner, err := harness.NewRunner(harness.RunnerConfig{
		Listener:    harness.NewListener(listenerCfg),
		Dispatcher:  p.dispatcher,
		Log:         p.log,
		Logger:      opts.Logger.With("component", "runner"),
		Script:      script,
		Recipient:   p.recipient,
		StartupWait: cfg.StartupWait,
		DrainWait:   cfg.DrainWait,
		ResultsPath: cfg.ResultsPath,
		Sink:        opts.Sink,
		Reporter:    console,
	})
	if err != nil {
		opts.Logger.Error("failed to build runner", "error", err)
		return ExitConfig
	}

	console.Banner(cfg.WhatsAppProvider, p.recipient, cfg.WebhookURL, script.Len())
	if _, err := runner.Run(ctx); err != nil {
		return ExitFailure
	}
	return ExitOK
}

// RunSender delivers the fixed bilingual message set without a listener and
// prints how many were accepted. It exits non-zero when any send failed.
func RunSender(ctx context.Context, cfg *appconfig.Config, opts Options) int {
	opts = opts.withDefaults()
	console := report.NewConsole(opts.Out, opts.Colored)

	p := preflight(cfg, opts, console, console)
	if p == nil {
		return ExitConfig
	}

	bodies := harness.SenderMessages()
	script := harness.Script{Phases: []harness.Phase{{
		Name:     "sender",
		Delay:    harness.Duration(cfg.SendDelay),
		Messages: bodies,
	}}}
	console.Banner(cfg.WhatsAppProvider, p.recipient, "", len(bodies))
	if err := p.dispatcher.Run(ctx, script, p.recipient); err != nil {
		opts.Logger.Warn("sender interrupted", "error", err)
	}

	snapshot := p.log.Snapshot()
	console.SenderSummary(snapshot.Sent, len(bodies))
	if snapshot.Sent < len(bodies) {
		return ExitFailure
	}
	return ExitOK
}
