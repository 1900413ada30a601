// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule runs a job once per day at a fixed local wall-clock
// time.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Daily fires a job at the configured hour and minute in the configured
// time zone, once every day.
type Daily struct {
	hour   int
	minute int
	loc    *time.Location

	// now is overridable for tests.
	now func() time.Time
}

// NewDaily builds a daily trigger from the schedule configuration.
func NewDaily(cfg types.ScheduleConfig) (*Daily, error) {
	if cfg.Hour < 0 || cfg.Hour > 23 || cfg.Minute < 0 || cfg.Minute > 59 {
		return nil, fmt.Errorf("invalid schedule time %02d:%02d", cfg.Hour, cfg.Minute)
	}
	loc := time.Local
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %s: %w", cfg.Timezone, err)
		}
	}
	return &Daily{hour: cfg.Hour, minute: cfg.Minute, loc: loc, now: time.Now}, nil
}

// next returns the first scheduled instant strictly after now.
func (d *Daily) next(now time.Time) time.Time {
	local := now.In(d.loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		d.hour, d.minute, 0, 0, d.loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Run blocks, invoking job at every scheduled instant until ctx is
// cancelled. The job runs on the scheduler goroutine; a slow job delays
// the following trigger rather than overlapping it.
func (d *Daily) Run(ctx context.Context, job func(time.Time)) {
	for {
		fireAt := d.next(d.now())
		timer := time.NewTimer(fireAt.Sub(d.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case t := <-timer.C:
			job(t)
		}
	}
}
