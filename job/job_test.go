package job_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/foreman/id"
	"github.com/xraph/foreman/job"
)

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status job.Status
		want   bool
	}{
		{job.StatusPending, false},
		{job.StatusProcessing, false},
		{job.StatusCompleted, true},
		{job.StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestJob_Ready(t *testing.T) {
	now := time.Now().UTC()
	staleAfter := 5 * time.Minute
	freshLease := now.Add(-1 * time.Minute)
	staleLease := now.Add(-6 * time.Minute)

	tests := []struct {
		name string
		j    job.Job
		want bool
	}{
		{
			name: "pending and due",
			j:    job.Job{Status: job.StatusPending, ScheduledAt: now.Add(-time.Second)},
			want: true,
		},
		{
			name: "pending but scheduled in the future",
			j:    job.Job{Status: job.StatusPending, ScheduledAt: now.Add(10 * time.Second)},
			want: false,
		},
		{
			name: "processing with fresh lease",
			j:    job.Job{Status: job.StatusProcessing, ScheduledAt: now.Add(-time.Minute), LeasedAt: &freshLease},
			want: false,
		},
		{
			name: "processing with stale lease",
			j:    job.Job{Status: job.StatusProcessing, ScheduledAt: now.Add(-time.Minute), LeasedAt: &staleLease},
			want: true,
		},
		{
			name: "processing without lease timestamp",
			j:    job.Job{Status: job.StatusProcessing, ScheduledAt: now.Add(-time.Minute)},
			want: false,
		},
		{
			name: "completed",
			j:    job.Job{Status: job.StatusCompleted, ScheduledAt: now.Add(-time.Minute)},
			want: false,
		},
		{
			name: "failed",
			j:    job.Job{Status: job.StatusFailed, ScheduledAt: now.Add(-time.Minute)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.j.Ready(now, staleAfter); got != tt.want {
				t.Errorf("Ready() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_ReadyAtExactExpiry(t *testing.T) {
	now := time.Now().UTC()
	staleAfter := 5 * time.Minute
	exact := now.Add(-staleAfter)

	j := job.Job{Status: job.StatusProcessing, ScheduledAt: now.Add(-time.Hour), LeasedAt: &exact}
	if !j.Ready(now, staleAfter) {
		t.Error("lease aged exactly staleAfter should be reclaimable")
	}

	justUnder := now.Add(-staleAfter + time.Millisecond)
	j.LeasedAt = &justUnder
	if j.Ready(now, staleAfter) {
		t.Error("lease younger than staleAfter must not be reclaimable")
	}
}

func TestJob_ClearLease(t *testing.T) {
	leased := time.Now().UTC()
	j := job.Job{
		Status:     job.StatusProcessing,
		LeaseOwner: id.NewWorkerID(),
		LeasedAt:   &leased,
	}

	j.ClearLease()

	if !j.LeaseOwner.IsNil() {
		t.Error("LeaseOwner should be nil after ClearLease")
	}
	if j.LeasedAt != nil {
		t.Error("LeasedAt should be nil after ClearLease")
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")

	if job.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	wrapped := job.Permanent(base)
	if !job.IsPermanent(wrapped) {
		t.Error("IsPermanent should detect a Permanent wrap")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent should preserve the error chain")
	}

	doubleWrapped := fmt.Errorf("handler: %w", wrapped)
	if !job.IsPermanent(doubleWrapped) {
		t.Error("IsPermanent should see through outer wrapping")
	}

	if job.IsPermanent(base) {
		t.Error("plain errors are retryable, not permanent")
	}
	if job.IsPermanent(nil) {
		t.Error("nil is not permanent")
	}
}

func TestPermanentf(t *testing.T) {
	err := job.Permanentf("unknown currency %q", "XYZ")
	if !job.IsPermanent(err) {
		t.Error("Permanentf should produce a permanent error")
	}
	want := `unknown currency "XYZ"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
