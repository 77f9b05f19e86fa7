package runlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testTime }
}

func TestRecordSentAndFailed(t *testing.T) {
	log := New(WithClock(fixedClock()))
	log.RecordSent("hello", "whatsapp:+15551234567", "SM1")
	log.RecordFailed("مرحباً", "whatsapp:+15551234567", errors.New("status 401 code 20003: Authenticate"))

	snap := log.Snapshot()
	assert.Equal(t, 1, snap.Sent)
	assert.Equal(t, 1, snap.Errored)
	assert.Equal(t, 0, snap.Received)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, OutcomeSent, snap.Entries[0].Status())
	assert.Equal(t, OutcomeFailed, snap.Entries[1].Status())
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "status 401 code 20003: Authenticate", snap.Errors[0].Error)
	assert.Equal(t, "مرحباً", snap.Errors[0].Message)
	assert.Equal(t, ErrorKindTransport, snap.Errors[0].Kind)
}

func TestRecordReceivedWithExtractionError(t *testing.T) {
	log := New(WithClock(fixedClock()))
	log.RecordReceived("", "", errors.New("invalid form body"))

	snap := log.Snapshot()
	assert.Equal(t, 1, snap.Received)
	assert.Equal(t, 0, snap.Errored)
	require.Len(t, snap.Entries, 1)
	event, ok := snap.Entries[0].(InboundEvent)
	require.True(t, ok)
	assert.Equal(t, "", event.From)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, ErrorKindExtraction, snap.Errors[0].Kind)
}

func TestSnapshotIsACopy(t *testing.T) {
	log := New()
	log.RecordSent("one", "to", "SM1")
	snap := log.Snapshot()
	log.RecordSent("two", "to", "SM2")
	assert.Len(t, snap.Entries, 1)
	assert.Equal(t, 1, snap.Sent)
	assert.Equal(t, 2, log.Snapshot().Sent)
}

func TestCountersMatchEntriesUnderConcurrency(t *testing.T) {
	log := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); log.RecordSent("s", "to", "SM") }()
		go func() { defer wg.Done(); log.RecordFailed("f", "to", errors.New("boom")) }()
		go func() { defer wg.Done(); log.RecordReceived("r", "from", nil) }()
	}
	wg.Wait()

	snap := log.Snapshot()
	counts := map[Outcome]int{}
	for _, e := range snap.Entries {
		counts[e.Status()]++
	}
	assert.Equal(t, snap.Sent, counts[OutcomeSent])
	assert.Equal(t, snap.Errored, counts[OutcomeFailed])
	assert.Equal(t, snap.Received, counts[OutcomeReceived])
	assert.Equal(t, 150, len(snap.Entries))
}

func TestReportJSONSchema(t *testing.T) {
	log := New(WithClock(fixedClock()))
	log.RecordSent("hello <world>", "whatsapp:+1555", "SM1")
	log.RecordReceived("مرحباً", "whatsapp:+1666", nil)
	log.RecordReceived("no sender", "", nil)
	log.RecordFailed("bye", "whatsapp:+1555", errors.New("network down"))

	data, err := log.Snapshot().Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello <world>")
	assert.Contains(t, string(data), "مرحباً")

	var doc struct {
		MessagesSent     int              `json:"messages_sent"`
		MessagesReceived int              `json:"messages_received"`
		TestMessages     []map[string]any `json:"test_messages"`
		Errors           []map[string]any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.MessagesSent)
	assert.Equal(t, 2, doc.MessagesReceived)
	require.Len(t, doc.TestMessages, 4)

	sent := doc.TestMessages[0]
	assert.Equal(t, "sent", sent["status"])
	assert.Equal(t, "SM1", sent["sid"])
	assert.NotContains(t, sent, "from")
	assert.InDelta(t, float64(testTime.Unix()), sent["timestamp"], 0.001)

	received := doc.TestMessages[1]
	assert.Equal(t, "received", received["status"])
	assert.Equal(t, "whatsapp:+1666", received["from"])
	assert.NotContains(t, received, "sid")

	// An empty sender is still written so the event is visibly present.
	assert.Equal(t, "", doc.TestMessages[2]["from"])

	assert.Equal(t, "failed", doc.TestMessages[3]["status"])
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "network down", doc.Errors[0]["error"])
	assert.Equal(t, "bye", doc.Errors[0]["message"])
}

func TestEmptyReportHasArrays(t *testing.T) {
	data, err := New().Snapshot().Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"test_messages": []`)
	assert.Contains(t, string(data), `"errors": []`)
}

func TestPersistIsIdempotent(t *testing.T) {
	log := New(WithClock(fixedClock()))
	log.RecordSent("hello", "to", "SM1")
	log.RecordSent("مرحباً", "to", "SM2")

	path := filepath.Join(t.TempDir(), "test_results.json")
	first, err := log.Persist(path)
	require.NoError(t, err)
	onDisk1, err := os.ReadFile(path)
	require.NoError(t, err)

	second, err := log.Persist(path)
	require.NoError(t, err)
	onDisk2, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, onDisk1, onDisk2)
	assert.Equal(t, first, onDisk1)
}

func TestPersistMissingDirectory(t *testing.T) {
	_, err := New().Persist(filepath.Join(t.TempDir(), "missing", "out.json"))
	assert.Error(t, err)
}
