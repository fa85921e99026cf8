package testutil

import (
	"sync"
	"time"
)

// StubClock は固定時刻を返す時計。並行利用可能。
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock は指定時刻に設定したStubClockを生成する。
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock は 2024-01-15 10:30:00 UTC に設定したStubClockを返す。
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance は時計をdだけ進める。
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set は時計を指定時刻に合わせる。
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
