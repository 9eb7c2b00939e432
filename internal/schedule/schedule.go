// Package schedule fires archival sweeps on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raoulx24/log-archiver/internal/archive"
	"github.com/raoulx24/log-archiver/internal/logging"
)

// Reason is passed to the sweeper for scheduled runs.
const Reason = "schedule"

type Scheduler struct {
	expr    string
	sched   cron.Schedule
	cron    *cron.Cron
	sweeper archive.Sweeper
	log     logging.Logger
}

// Parse validates a five-field cron expression. Descriptors such as @daily
// and @every are accepted.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// New parses expr and prepares the schedule. It does not start it.
func New(expr string, sweeper archive.Sweeper, log logging.Logger) (*Scheduler, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	// Recover has to sit inside SkipIfStillRunning, which only releases its
	// slot when the job returns normally.
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)

	s := &Scheduler{
		expr:    expr,
		sched:   sched,
		cron:    c,
		sweeper: sweeper,
		log:     log,
	}
	c.Schedule(sched, cron.FuncJob(s.run))
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "schedule", s.expr, "next", s.sched.Next(time.Now()))
	s.cron.Start()
}

// Stop prevents further runs. The returned context is done once a sweep
// that is already running has finished; that sweep is not interrupted.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping", "schedule", s.expr)
	return s.cron.Stop()
}

// Next returns the next n activation times from now.
func (s *Scheduler) Next(n int) []time.Time {
	return NextFrom(s.sched, time.Now(), n)
}

// NextFrom returns the n activation times of sched following t.
func NextFrom(sched cron.Schedule, t time.Time, n int) []time.Time {
	n = max(n, 0)
	out := make([]time.Time, 0, n)
	for range n {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// run uses its own context so Stop never cancels a sweep midway.
func (s *Scheduler) run() {
	res, err := s.sweeper.Sweep(context.Background(), Reason)
	if err != nil {
		s.log.Error("scheduled sweep failed", "sweep_id", res.ID, "error", err)
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
