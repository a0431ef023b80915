package sdr

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mcuadros/go-defaults"
)

// PollerOptions control JobPoller timing. Zero fields take the tag defaults.
type PollerOptions struct {
	Interval    time.Duration `default:"3s"`
	Backoff     float64       `default:"2.0"`
	MaxInterval time.Duration `default:"60s"`
	Timeout     time.Duration `default:"180s"`
}

// JobPoller waits for a background job to reach a terminal state.
//
// Each attempt sleeps for the current interval and then fetches the status.
// The interval starts at Interval and is multiplied by Backoff after every
// poll that did not complete, capped at MaxInterval. Once the cumulative
// wait exceeds Timeout the poller gives up and returns the last observed
// status marked as timed out, carrying a single synthesized error.
type JobPoller struct {
	fetcher JobStatusFetcher
	sleeper Sleeper
	logger  Logger
	opts    PollerOptions
}

// NewJobPoller creates a poller reading job statuses from fetcher.
func NewJobPoller(fetcher JobStatusFetcher, sleeper Sleeper, logger Logger, opts PollerOptions) *JobPoller {
	defaults.SetDefaults(&opts)
	if opts.MaxInterval < opts.Interval {
		opts.MaxInterval = opts.Interval
	}
	return &JobPoller{
		fetcher: fetcher,
		sleeper: sleeper,
		logger:  logger,
		opts:    opts,
	}
}

// Options returns the effective timing options.
func (p *JobPoller) Options() PollerOptions {
	return p.opts
}

// Wait blocks until the job completes, the timeout budget is spent, or ctx
// is cancelled. A timeout is not an error: it is reported through the
// returned status.
func (p *JobPoller) Wait(ctx context.Context, jobID string) (*JobStatus, error) {
	intervals := p.intervals()
	var elapsed time.Duration

	for {
		interval := intervals.NextBackOff()
		if err := p.sleeper.Sleep(ctx, interval); err != nil {
			return nil, fmt.Errorf("waiting for job %s: %w", jobID, err)
		}
		elapsed += interval

		status, err := p.fetcher.JobStatus(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("polling job %s: %w", jobID, err)
		}
		status.JobID = jobID

		if status.Status == JobComplete {
			p.logger.Info("job complete", "job_id", jobID, "druid", status.Druid(), "errors", len(status.Errors()))
			return status, nil
		}

		p.logger.Debug("job not complete", "job_id", jobID, "status", status.Status, "elapsed", elapsed)

		if elapsed > p.opts.Timeout {
			p.logger.Warn("job polling timed out", "job_id", jobID, "status", status.Status, "timeout", p.opts.Timeout)
			markTimedOut(status, p.opts.Timeout)
			return status, nil
		}
	}
}

// intervals yields Interval, then each previous interval times Backoff,
// capped at MaxInterval. Jitter is off and the sequence never stops on its
// own; the timeout is counted against slept time, not wall time.
func (p *JobPoller) intervals() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.Interval
	b.Multiplier = p.opts.Backoff
	b.MaxInterval = p.opts.MaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func markTimedOut(status *JobStatus, timeout time.Duration) {
	status.TimedOut = true
	status.Output.Errors = []JobError{{
		Title:   "Timeout",
		Message: fmt.Sprintf("Not complete after %g seconds", timeout.Seconds()),
	}}
}
