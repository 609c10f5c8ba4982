package workspace

import (
	"time"

	gutils "github.com/Laisky/go-utils/v6"
)

// Timer is a cancellable pending callback. Stop must be safe to call repeatedly.
type Timer interface {
	Stop() bool
}

// Scheduler creates debounce timers.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Clock returns the current time in UTC.
type Clock func() time.Time

// RealScheduler schedules callbacks on the runtime timer wheel.
type RealScheduler struct{}

// AfterFunc runs f in its own goroutine after d.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func defaultClock() time.Time {
	return gutils.Clock.GetUTCNow()
}
