package seal

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"timelock/internal/timeauth"
)

// referenceTime is 2025-01-01T00:00:00Z.
var referenceTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by the engine and the fake authority.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestEngine returns an engine backed by a fake authority whose key
// release follows clock.
func newTestEngine(t *testing.T) (*Engine, *timeauth.FakeAuthority, *testClock) {
	t.Helper()

	clock := &testClock{now: referenceTime}
	authority := &timeauth.FakeAuthority{Now: clock.Now}
	engine := New(authority,
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return engine, authority, clock
}
