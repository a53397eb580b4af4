package coordinator

import (
	"sync"
	"time"
)

// FakeTimer is a Timer driven by Advance instead of the wall clock.
type FakeTimer struct {
	mutex   sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

// NewFakeTimer creates a FakeTimer starting at now.
func NewFakeTimer(now time.Time) *FakeTimer {
	return &FakeTimer{now: now}
}

func (f *FakeTimer) NewTicker(d time.Duration) Ticker {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	t := &FakeTicker{
		interval: d,
		next:     f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *FakeTimer) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

// Advance moves the clock forward. Every running ticker whose deadline has
// passed fires once, like a time.Ticker whose reader fell behind.
func (f *FakeTimer) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.now = f.now.Add(d)
	for _, t := range f.tickers {
		t.fire(f.now)
	}
}

// Tickers returns the number of tickers created.
func (f *FakeTimer) Tickers() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.tickers)
}

// FakeTicker is a Ticker created by FakeTimer.
type FakeTicker struct {
	mutex    sync.Mutex
	interval time.Duration
	next     time.Time
	stopped  bool
	ch       chan time.Time
}

func (t *FakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *FakeTicker) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.stopped = true
}

func (t *FakeTicker) fire(now time.Time) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.stopped || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.interval)
	}
	select {
	case t.ch <- now:
	default:
	}
}
