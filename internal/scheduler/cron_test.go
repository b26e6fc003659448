package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/pdflow/internal/domain"
)

// errAny — ожидается любая ошибка.
var errAny = errors.New("any error")

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sched   domain.Schedule
		want    time.Time
		wantErr error
	}{
		{
			name:  "nightly cron",
			sched: domain.Schedule{CronExpr: "0 2 * * *"},
			want:  time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron in timezone",
			sched: domain.Schedule{CronExpr: "0 2 * * *", Timezone: "Europe/Moscow"},
			want:  time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC),
		},
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 3600},
			want:  from.Add(time.Hour),
		},
		{
			name:  "descriptor",
			sched: domain.Schedule{CronExpr: "@daily"},
			want:  time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "every descriptor ignores timezone",
			sched: domain.Schedule{CronExpr: "@every 90m", Timezone: "Europe/Moscow"},
			want:  from.Add(90 * time.Minute),
		},
		{
			name:    "unknown timezone",
			sched:   domain.Schedule{CronExpr: "0 2 * * *", Timezone: "Mars/Olympus"},
			wantErr: errAny,
		},
		{
			name:    "no trigger",
			sched:   domain.Schedule{},
			wantErr: ErrNoTrigger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&tt.sched, from)
			if tt.wantErr == errAny {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/15 * * * *"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateCronExpr("@weekly"); err != nil {
		t.Errorf("unexpected error for descriptor: %v", err)
	}
	if err := ValidateCronExpr("every night"); err == nil {
		t.Error("expected error for invalid expression")
	}
}
