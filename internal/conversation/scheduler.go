package conversation

import "time"

// Scheduler schedules a single callback to run after a delay. The production
// implementation wraps time.AfterFunc; tests substitute a manual clock so
// recovery timing is deterministic.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is an outstanding scheduled callback. Stop reports whether the stop
// prevented the callback from running.
type Timer interface {
	Stop() bool
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler returns a Scheduler backed by time.AfterFunc.
func RealScheduler() Scheduler {
	return realScheduler{}
}
