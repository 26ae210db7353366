// Package janitor ends interview sessions abandoned in the browser.
package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper is the engine capability the janitor needs.
type Reaper interface {
	ReapStale(ctx context.Context, maxIdle time.Duration) (int, error)
}

// Janitor periodically ends active sessions idle past maxIdle.
type Janitor struct {
	reaper  Reaper
	cron    *cron.Cron
	maxIdle time.Duration
	timeout time.Duration
	log     *zap.Logger
}

// New schedules the reaper on a cron expression, e.g. "*/10 * * * *".
func New(reaper Reaper, schedule string, maxIdle time.Duration, log *zap.Logger) (*Janitor, error) {
	j := &Janitor{
		reaper:  reaper,
		cron:    cron.New(),
		maxIdle: maxIdle,
		timeout: time.Minute,
		log:     log,
	}
	if _, err := j.cron.AddFunc(schedule, j.reap); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.log.Info("janitor started", zap.Duration("max_idle", j.maxIdle))
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("janitor stopped")
}

func (j *Janitor) reap() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	ended, err := j.reaper.ReapStale(ctx, j.maxIdle)
	if err != nil {
		j.log.Error("stale session sweep failed", zap.Error(err))
		return
	}
	if ended > 0 {
		j.log.Info("stale sessions ended", zap.Int("count", ended))
	}
}
