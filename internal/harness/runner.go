package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

// State is the lifecycle phase of a run.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDrained  State = "drained"
	StateReported State = "reported"
)

// ResultSink receives a copy of the persisted artifact.
type ResultSink interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Reporter prints the end-of-run summary. persistErr is non-nil when the
// results file could not be written.
type Reporter interface {
	Summary(report runlog.Report, path string, persistErr error)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Listener   *Listener
	Dispatcher *Dispatcher
	Log        *runlog.RunLog
	Logger     *logging.Logger

	Script    Script
	Recipient string

	StartupWait time.Duration
	DrainWait   time.Duration
	StopTimeout time.Duration
	ResultsPath string

	Sink     ResultSink
	Reporter Reporter
}

// Runner drives one end-to-end run: start listener, dispatch the script,
// drain late callbacks, persist the report.
type Runner struct {
	cfg   RunnerConfig
	sleep func(context.Context, time.Duration) error

	mu    sync.Mutex
	state State
}

// NewRunner validates cfg and returns an idle runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("harness: dispatcher is required")
	}
	if cfg.Log == nil {
		return nil, errors.New("harness: run log is required")
	}
	if cfg.ResultsPath == "" {
		return nil, errors.New("harness: results path is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Runner{cfg: cfg, sleep: sleepContext, state: StateIdle}, nil
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.cfg.Logger.Debug("run state changed", "state", string(s))
}

// Run executes the whole lifecycle. Cancelling ctx stops dispatch and skips
// the drain wait, but the report is still persisted. The returned error is
// non-nil only when the report could not be written; the summary is printed
// and the runner still ends in StateReported.
func (r *Runner) Run(ctx context.Context) (runlog.Report, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return runlog.Report{}, fmt.Errorf("harness: runner is %s, not idle", r.state)
	}
	r.state = StateRunning
	r.mu.Unlock()
	r.cfg.Logger.Info("test run started", "messages", r.cfg.Script.Len(), "to", r.cfg.Recipient)

	if r.cfg.Listener != nil {
		if err := r.cfg.Listener.Start(ctx); err != nil {
			// Outbound dispatch can still be verified without callbacks.
			r.cfg.Logger.Error("webhook listener failed to start", "error", err)
		} else if err := r.sleep(ctx, r.cfg.StartupWait); err != nil {
			r.cfg.Logger.Warn("interrupted during listener startup")
		}
	}

	interrupted := false
	if ctx.Err() == nil {
		if err := r.cfg.Dispatcher.Run(ctx, r.cfg.Script, r.cfg.Recipient); err != nil {
			interrupted = true
			r.cfg.Logger.Warn("dispatch interrupted", "error", err)
		}
	} else {
		interrupted = true
	}

	if !interrupted {
		r.cfg.Logger.Info("waiting for late callbacks", "drain_wait", r.cfg.DrainWait.String())
		if err := r.sleep(ctx, r.cfg.DrainWait); err != nil {
			r.cfg.Logger.Warn("drain wait interrupted")
		}
	}
	r.stopListener()
	r.setState(StateDrained)

	return r.report()
}

func (r *Runner) stopListener() {
	if r.cfg.Listener == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StopTimeout)
	defer cancel()
	if err := r.cfg.Listener.Stop(ctx); err != nil {
		r.cfg.Logger.Warn("webhook listener stop failed", "error", err)
	}
}

func (r *Runner) report() (runlog.Report, error) {
	snapshot := r.cfg.Log.Snapshot()
	data, persistErr := r.cfg.Log.Persist(r.cfg.ResultsPath)
	if persistErr != nil {
		r.cfg.Logger.Error("failed to persist results", "error", persistErr, "path", r.cfg.ResultsPath)
	} else {
		r.cfg.Logger.Info("results saved",
			"path", r.cfg.ResultsPath,
			"sent", snapshot.Sent,
			"received", snapshot.Received,
			"errors", len(snapshot.Errors),
		)
		r.upload(data)
	}

	if r.cfg.Reporter != nil {
		r.cfg.Reporter.Summary(snapshot, r.cfg.ResultsPath, persistErr)
	}
	r.setState(StateReported)
	if persistErr != nil {
		return snapshot, fmt.Errorf("harness: persist results: %w", persistErr)
	}
	return snapshot, nil
}

func (r *Runner) upload(data []byte) {
	if r.cfg.Sink == nil {
		return
	}
	// Upload with a fresh context so an interrupted run is still archived.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	location, err := r.cfg.Sink.Upload(ctx, filepath.Base(r.cfg.ResultsPath), data)
	if err != nil {
		r.cfg.Logger.Warn("results archive upload failed", "error", err)
		return
	}
	if location != "" {
		r.cfg.Logger.Info("results archived", "location", location)
	}
}
