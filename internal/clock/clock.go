package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock is the time source used by dispatch policies. It is injected so that
// tests can control time deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

func (c *systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// NewSystem returns a Clock backed by the system time source.
// Go timestamps carry a monotonic reading, so differences between two Now()
// values are immune to wall-clock adjustments.
func NewSystem() (Clock, error) {
	loc, err := time.LoadLocation("Local")
	if err != nil {
		return nil, fmt.Errorf("could not acquire local time source: %v", err)
	}
	return &systemClock{loc: loc}, nil
}

// Fake is a manually advanced Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
