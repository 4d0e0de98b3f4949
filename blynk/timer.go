package blynk

import (
	"time"

	"github.com/apex/log"
)

// TimerFunc a job run by a Timer
type TimerFunc func() error

type timerJob struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       TimerFunc
	enabled  bool
	once     bool
	deleted  bool
}

// Timer runs jobs at intervals from the caller's loop, there is no goroutine.
// The loop must call Run as often as the shortest interval needs:
//
//	timer := blynk.NewTimer(nil)
//	timer.SetInterval(15*time.Second, sendSensors)
//	for {
//		client.Run()
//		timer.Run()
//		time.Sleep(50 * time.Millisecond)
//	}
type Timer struct {
	jobs   []*timerJob
	lastID int
	now    func() time.Time
	log    log.Interface
}

// NewTimer creates a Timer, logger may be nil
func NewTimer(logger log.Interface) *Timer {
	if logger == nil {
		logger = log.Log
	}
	return &Timer{
		now: time.Now,
		log: logger,
	}
}

// SetInterval runs fn every interval, the first run is one interval from now
func (t *Timer) SetInterval(interval time.Duration, fn TimerFunc) int {
	return t.add(interval, fn, false)
}

// SetTimeout runs fn once after delay
func (t *Timer) SetTimeout(delay time.Duration, fn TimerFunc) int {
	return t.add(delay, fn, true)
}

func (t *Timer) add(interval time.Duration, fn TimerFunc, once bool) int {
	t.lastID++
	t.jobs = append(t.jobs, &timerJob{
		id:       t.lastID,
		interval: interval,
		next:     t.now().Add(interval),
		fn:       fn,
		enabled:  true,
		once:     once,
	})
	return t.lastID
}

func (t *Timer) job(id int) *timerJob {
	for _, j := range t.jobs {
		if j.id == id {
			return j
		}
	}
	return nil
}

// Enable resumes a job, its next run is one interval from now
func (t *Timer) Enable(id int) bool {
	j := t.job(id)
	if j == nil {
		return false
	}
	if !j.enabled {
		j.enabled = true
		j.next = t.now().Add(j.interval)
	}
	return true
}

// Disable pauses a job
func (t *Timer) Disable(id int) bool {
	j := t.job(id)
	if j == nil {
		return false
	}
	j.enabled = false
	return true
}

// Delete removes a job
func (t *Timer) Delete(id int) bool {
	for i, j := range t.jobs {
		if j.id == id {
			j.deleted = true
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// Len number of scheduled jobs
func (t *Timer) Len() int {
	return len(t.jobs)
}

// Run executes every due job once. Errors and panics are logged.
func (t *Timer) Run() {
	now := t.now()
	due := make([]*timerJob, 0, len(t.jobs))
	for _, j := range t.jobs {
		if j.enabled && !now.Before(j.next) {
			due = append(due, j)
		}
	}
	for _, j := range due {
		if j.deleted {
			continue
		}
		t.invoke(j)
		if j.once {
			t.Delete(j.id)
			continue
		}
		j.next = j.next.Add(j.interval)
		if !j.next.After(now) {
			// fell behind, do not run a burst of catch-up jobs
			j.next = now.Add(j.interval)
		}
	}
}

func (t *Timer) invoke(j *timerJob) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithFields(log.Fields{"Timer": j.id, "Panic": r}).Error("Timer job panicked")
		}
	}()
	if err := j.fn(); err != nil {
		t.log.WithField("Timer", j.id).WithError(err).Warn("Timer job failed")
	}
}
