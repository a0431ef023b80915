package sdr_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sdr-go/internal/sdr"
	"sdr-go/internal/testutil"
)

// scriptedJobs returns statuses in order; the last one repeats.
type scriptedJobs struct {
	mu       sync.Mutex
	statuses []string
	calls    int
	err      error
}

func (s *scriptedJobs) JobStatus(_ context.Context, jobID string) (*sdr.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.calls++
	return &sdr.JobStatus{Status: s.statuses[i], Output: sdr.JobOutput{Druid: "druid:bc123df4567"}}, nil
}

func TestJobPoller_CompletesAfterPending(t *testing.T) {
	jobs := &scriptedJobs{statuses: []string{sdr.JobPending, sdr.JobProcessing, sdr.JobComplete}}
	sleeper := testutil.NewRecordingSleeper()
	poller := sdr.NewJobPoller(jobs, sleeper, sdr.NewNopLogger(), sdr.PollerOptions{})

	status, err := poller.Wait(context.Background(), "9")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if status.JobID != "9" || !status.Succeeded() || status.TimedOut {
		t.Errorf("Wait() = %+v, want successful job 9", status)
	}
	if status.Druid() != "druid:bc123df4567" {
		t.Errorf("Druid() = %q", status.Druid())
	}

	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second}
	assertWaits(t, sleeper.Waits(), want)
}

func TestJobPoller_BackoffIsCapped(t *testing.T) {
	jobs := &scriptedJobs{statuses: []string{
		sdr.JobPending, sdr.JobPending, sdr.JobPending, sdr.JobPending, sdr.JobComplete,
	}}
	sleeper := testutil.NewRecordingSleeper()
	poller := sdr.NewJobPoller(jobs, sleeper, sdr.NewNopLogger(), sdr.PollerOptions{
		Interval:    time.Second,
		Backoff:     2,
		MaxInterval: 8 * time.Second,
		Timeout:     time.Minute,
	})

	if _, err := poller.Wait(context.Background(), "1"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	assertWaits(t, sleeper.Waits(), want)
}

func TestJobPoller_TimesOut(t *testing.T) {
	jobs := &scriptedJobs{statuses: []string{sdr.JobPending}}
	sleeper := testutil.NewRecordingSleeper()
	poller := sdr.NewJobPoller(jobs, sleeper, sdr.NewNopLogger(), sdr.PollerOptions{
		Interval:    time.Second,
		Backoff:     2,
		MaxInterval: 4 * time.Second,
		Timeout:     10 * time.Second,
	})

	status, err := poller.Wait(context.Background(), "5")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !status.TimedOut || !status.Complete() || status.Succeeded() {
		t.Errorf("Wait() = %+v, want timed out status", status)
	}
	if status.Status != sdr.JobPending {
		t.Errorf("Status = %q, want last observed %q", status.Status, sdr.JobPending)
	}
	errs := status.Errors()
	if len(errs) != 1 || errs[0].Title != "Timeout" || errs[0].Message != "Not complete after 10 seconds" {
		t.Errorf("Errors() = %+v", errs)
	}

	// 1 + 2 + 4 + 4 = 11 > 10
	assertWaits(t, sleeper.Waits(), []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second})
	if jobs.calls != 4 {
		t.Errorf("fetched %d times, want 4", jobs.calls)
	}
}

func TestJobPoller_TimeoutIsExclusive(t *testing.T) {
	jobs := &scriptedJobs{statuses: []string{sdr.JobProcessing, sdr.JobProcessing, sdr.JobComplete}}
	sleeper := testutil.NewRecordingSleeper()
	poller := sdr.NewJobPoller(jobs, sleeper, sdr.NewNopLogger(), sdr.PollerOptions{
		Interval:    2 * time.Second,
		Backoff:     1,
		MaxInterval: 2 * time.Second,
		Timeout:     4 * time.Second,
	})

	status, err := poller.Wait(context.Background(), "6")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	// Elapsed equals the budget after the second poll, which is not yet a timeout.
	if status.TimedOut || !status.Succeeded() {
		t.Errorf("Wait() = %+v, want completion on the third poll", status)
	}
	assertWaits(t, sleeper.Waits(), []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second})
}

func TestJobPoller_Cancelled(t *testing.T) {
	jobs := &scriptedJobs{statuses: []string{sdr.JobPending}}
	poller := sdr.NewJobPoller(jobs, testutil.NewRecordingSleeper(), sdr.NewNopLogger(), sdr.PollerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poller.Wait(ctx, "1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if jobs.calls != 0 {
		t.Errorf("fetched %d times after cancel", jobs.calls)
	}
}

func TestJobPoller_FetchError(t *testing.T) {
	boom := errors.New("connection refused")
	jobs := &scriptedJobs{err: boom}
	poller := sdr.NewJobPoller(jobs, testutil.NewRecordingSleeper(), sdr.NewNopLogger(), sdr.PollerOptions{})

	_, err := poller.Wait(context.Background(), "1")
	if !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want wrapped fetch error", err)
	}
}

func TestJobPoller_DefaultOptions(t *testing.T) {
	poller := sdr.NewJobPoller(&scriptedJobs{}, testutil.NewRecordingSleeper(), sdr.NewNopLogger(), sdr.PollerOptions{})
	opts := poller.Options()
	if opts.Interval != 3*time.Second || opts.Backoff != 2 || opts.MaxInterval != time.Minute || opts.Timeout != 3*time.Minute {
		t.Errorf("Options() = %+v", opts)
	}
}

func assertWaits(t *testing.T, got, want []time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("waits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("waits = %v, want %v", got, want)
		}
	}
}
