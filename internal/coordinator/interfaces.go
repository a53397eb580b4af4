package coordinator

import (
	"log"
	"time"
)

// Timer interface abstracts time operations for testing
type Timer interface {
	NewTicker(d time.Duration) Ticker
	Now() time.Time
}

// Ticker interface abstracts ticker for testing
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Logger interface abstracts logging for testing
type Logger interface {
	Printf(format string, v ...any)
}

// RealTimer implements Timer using real time operations
type RealTimer struct{}

func (r *RealTimer) NewTicker(d time.Duration) Ticker {
	return &RealTicker{time.NewTicker(d)}
}

func (r *RealTimer) Now() time.Time {
	return time.Now()
}

// RealTicker implements Ticker using time.Ticker
type RealTicker struct {
	*time.Ticker
}

func (r *RealTicker) C() <-chan time.Time {
	return r.Ticker.C
}

func (r *RealTicker) Stop() {
	r.Ticker.Stop()
}

// RealLogger implements Logger using the standard log package
type RealLogger struct{}

func (r *RealLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
