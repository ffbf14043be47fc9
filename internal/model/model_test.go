package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseSubmissionStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    SubmissionStatus
		wantErr bool
	}{
		{input: "Pending", want: StatusPending},
		{input: "InProgress", want: StatusInProgress},
		{input: "Completed", want: StatusCompleted},
		{input: "pending", wantErr: true},
		{input: "Delivered", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSubmissionStatus(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownStatus) {
				t.Fatalf("ParseSubmissionStatus(%q): expected ErrUnknownStatus, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSubmissionStatus(%q) error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSubmissionStatus(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSubscriptionActiveAt(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{
			name: "inside window",
			sub: Subscription{
				IsActive:  true,
				StartDate: now.Add(-time.Hour),
				EndDate:   now.Add(time.Hour),
			},
			want: true,
		},
		{
			name: "inactive flag",
			sub: Subscription{
				IsActive:  false,
				StartDate: now.Add(-time.Hour),
				EndDate:   now.Add(time.Hour),
			},
			want: false,
		},
		{
			name: "expired",
			sub: Subscription{
				IsActive:  true,
				StartDate: now.Add(-2 * time.Hour),
				EndDate:   now.Add(-time.Hour),
			},
			want: false,
		},
		{
			name: "not started",
			sub: Subscription{
				IsActive:  true,
				StartDate: now.Add(time.Hour),
				EndDate:   now.Add(2 * time.Hour),
			},
			want: false,
		},
		{
			name: "boundaries inclusive",
			sub: Subscription{
				IsActive:  true,
				StartDate: now,
				EndDate:   now,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.ActiveAt(now); got != tt.want {
				t.Fatalf("ActiveAt = %v, want %v", got, tt.want)
			}
		})
	}
}
