package harness

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

type fakeSink struct {
	name string
	data []byte
	err  error
}

func (s *fakeSink) Upload(_ context.Context, name string, data []byte) (string, error) {
	s.name = name
	s.data = data
	if s.err != nil {
		return "", s.err
	}
	return "s3://bucket/" + name, nil
}

type fakeReporter struct {
	calls      int
	report     runlog.Report
	path       string
	persistErr error
}

func (r *fakeReporter) Summary(report runlog.Report, path string, persistErr error) {
	r.calls++
	r.report = report
	r.path = path
	r.persistErr = persistErr
}

type persistedResult struct {
	MessagesSent     int `json:"messages_sent"`
	MessagesReceived int `json:"messages_received"`
	TestMessages     []struct {
		Message string  `json:"message"`
		Status  string  `json:"status"`
		From    *string `json:"from"`
	} `json:"test_messages"`
	Errors []struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"errors"`
}

func readResult(t *testing.T, path string) persistedResult {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out persistedResult
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRunnerFullLifecycle(t *testing.T) {
	log := runlog.New()
	transport := &fakeTransport{}
	dispatcher, _ := newTestDispatcher(t, transport, log)
	listener := NewListener(ListenerConfig{Addr: "127.0.0.1:0", Log: log, Logger: logging.Discard()})
	path := filepath.Join(t.TempDir(), "test_results.json")
	sink := &fakeSink{}
	reporter := &fakeReporter{}

	runner, err := NewRunner(RunnerConfig{
		Listener:    listener,
		Dispatcher:  dispatcher,
		Log:         log,
		Logger:      logging.Discard(),
		Script:      singlePhase(0, "hello", "مرحباً"),
		Recipient:   "whatsapp:+15550001111",
		ResultsPath: path,
		Sink:        sink,
		Reporter:    reporter,
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, runner.State())

	// Deliver a reply while the run is draining.
	runner.sleep = func(ctx context.Context, d time.Duration) error {
		if addr := listener.Addr(); addr != "" && runner.State() == StateRunning && transport.Calls() != nil {
			resp, err := http.PostForm("http://"+addr+"/webhook", url.Values{
				"Body": {"reply"},
				"From": {"whatsapp:+15550001111"},
			})
			if err == nil {
				resp.Body.Close()
			}
		}
		return ctx.Err()
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReported, runner.State())
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Received)
	assert.Empty(t, listener.Addr())

	result := readResult(t, path)
	assert.Equal(t, 2, result.MessagesSent)
	assert.Equal(t, 1, result.MessagesReceived)
	require.Len(t, result.TestMessages, 3)
	assert.Equal(t, "مرحباً", result.TestMessages[1].Message)
	require.NotNil(t, result.TestMessages[2].From)
	assert.Equal(t, "whatsapp:+15550001111", *result.TestMessages[2].From)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "test_results.json", sink.name)
	assert.NotEmpty(t, sink.data)
	assert.Equal(t, 1, reporter.calls)
	assert.Equal(t, path, reporter.path)

	_, err = runner.Run(context.Background())
	assert.Error(t, err)
}

func TestRunnerInterruptStillPersists(t *testing.T) {
	log := runlog.New()
	transport := &fakeTransport{}
	dispatcher, _ := newTestDispatcher(t, transport, log)
	path := filepath.Join(t.TempDir(), "results.json")

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	runner, err := NewRunner(RunnerConfig{
		Dispatcher:  dispatcher,
		Log:         log,
		Logger:      logging.Discard(),
		Script:      singlePhase(time.Second, "one", "two", "three"),
		Recipient:   "whatsapp:+15550001111",
		ResultsPath: path,
		DrainWait:   time.Hour,
	})
	require.NoError(t, err)
	var drained bool
	runner.sleep = func(context.Context, time.Duration) error {
		drained = true
		return nil
	}

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.False(t, drained)
	assert.Equal(t, StateReported, runner.State())
	assert.Equal(t, 1, report.Sent)

	result := readResult(t, path)
	assert.Equal(t, 1, result.MessagesSent)
	assert.Len(t, result.TestMessages, 1)
}

func TestRunnerListenerBindFailureContinues(t *testing.T) {
	blocker := NewListener(ListenerConfig{Addr: "127.0.0.1:0", Log: runlog.New(), Logger: logging.Discard()})
	require.NoError(t, blocker.Start(context.Background()))
	defer blocker.Stop(context.Background())

	log := runlog.New()
	dispatcher, _ := newTestDispatcher(t, &fakeTransport{}, log)
	path := filepath.Join(t.TempDir(), "results.json")
	runner, err := NewRunner(RunnerConfig{
		Listener:    NewListener(ListenerConfig{Addr: blocker.Addr(), Log: log, Logger: logging.Discard()}),
		Dispatcher:  dispatcher,
		Log:         log,
		Logger:      logging.Discard(),
		Script:      singlePhase(0, "hello"),
		Recipient:   "whatsapp:+15550001111",
		ResultsPath: path,
	})
	require.NoError(t, err)
	runner.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.FileExists(t, path)
}

func TestRunnerPersistFailure(t *testing.T) {
	log := runlog.New()
	dispatcher, _ := newTestDispatcher(t, &fakeTransport{}, log)
	reporter := &fakeReporter{}
	runner, err := NewRunner(RunnerConfig{
		Dispatcher:  dispatcher,
		Log:         log,
		Logger:      logging.Discard(),
		Script:      singlePhase(0, "hello"),
		ResultsPath: filepath.Join(t.TempDir(), "missing", "results.json"),
		Reporter:    reporter,
	})
	require.NoError(t, err)
	runner.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	report, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateReported, runner.State())
	assert.Equal(t, 1, reporter.calls)
	assert.Error(t, reporter.persistErr)
	assert.Equal(t, 1, reporter.report.Sent)
	assert.Equal(t, 1, report.Sent)
}

func TestRunnerSinkFailureIsNotFatal(t *testing.T) {
	log := runlog.New()
	dispatcher, _ := newTestDispatcher(t, &fakeTransport{}, log)
	path := filepath.Join(t.TempDir(), "results.json")
	runner, err := NewRunner(RunnerConfig{
		Dispatcher:  dispatcher,
		Log:         log,
		Logger:      logging.Discard(),
		Script:      singlePhase(0, "hello"),
		ResultsPath: path,
		Sink:        &fakeSink{err: errors.New("access denied")},
	})
	require.NoError(t, err)
	runner.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReported, runner.State())
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(RunnerConfig{})
	assert.Error(t, err)

	dispatcher, _ := newTestDispatcher(t, &fakeTransport{}, runlog.New())
	_, err = NewRunner(RunnerConfig{Dispatcher: dispatcher, Log: runlog.New()})
	assert.Error(t, err)
}
