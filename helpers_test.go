package armsim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	e, err := NewEngine(cfg, logging.NewTestLogger(t), WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e, mock
}

// advanceUntil steps the mock clock until cond holds.
func advanceUntil(t *testing.T, mock *clock.Mock, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out advancing the mock clock")
		}
		mock.Add(10 * time.Millisecond)
	}
}

func advanceUntilDone(t *testing.T, mock *clock.Mock, done <-chan struct{}) {
	t.Helper()
	advanceUntil(t, mock, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
}

// eventLog records every event it sees.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, e := range l.snapshot() {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}
