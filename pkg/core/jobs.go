package core

import (
	"context"
	"sync/atomic"
	"time"
)

// Job defines a scheduled task evaluated after every frame.
type Job interface {
	Name() string
	ShouldFire(t float64) bool
	Run(ctx context.Context, t float64)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// TimeJob fires when wall time elapsed exceeds threshold.
type TimeJob struct {
	BaseJob
	now       func() time.Time
	lastTime  time.Time
	threshold time.Duration
	action    func(context.Context, float64)
	firstRun  bool
}

func NewTimeJob(name string, threshold time.Duration, action func(context.Context, float64)) *TimeJob {
	return &TimeJob{
		BaseJob:   NewBaseJob(name),
		now:       time.Now,
		threshold: threshold,
		action:    action,
		firstRun:  true,
	}
}

func (j *TimeJob) ShouldFire(t float64) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}

	if j.firstRun {
		return true
	}

	return j.now().Sub(j.lastTime) >= j.threshold
}

func (j *TimeJob) Run(ctx context.Context, t float64) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime = j.now()
	j.firstRun = false

	j.action(ctx, t)
}
