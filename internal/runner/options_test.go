package runner

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "zero value",
			in:   Options{},
			want: Options{Concurrency: 1},
		},
		{
			name: "negatives clamp",
			in:   Options{Concurrency: -5, Exchanges: -10, Rate: -1, Duration: -time.Second},
			want: Options{Concurrency: 1},
		},
		{
			name: "valid values kept",
			in:   Options{Concurrency: 10, Exchanges: 100, Rate: 50, Duration: time.Minute},
			want: Options{Concurrency: 10, Exchanges: 100, Rate: 50, Duration: time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.normalize()
			if got.NewLimiter == nil {
				t.Fatal("NewLimiter should default to the token bucket")
			}
			if got.Concurrency != tt.want.Concurrency || got.Exchanges != tt.want.Exchanges ||
				got.Rate != tt.want.Rate || got.Duration != tt.want.Duration {
				t.Errorf("normalize() = {%d %d %d %s}, want {%d %d %d %s}",
					got.Concurrency, got.Exchanges, got.Rate, got.Duration,
					tt.want.Concurrency, tt.want.Exchanges, tt.want.Rate, tt.want.Duration)
			}
		})
	}
}

func TestNormalizeKeepsCustomLimiter(t *testing.T) {
	custom := rate.NewLimiter(1, 1)
	opts := Options{NewLimiter: func(int) *rate.Limiter { return custom }}
	opts.normalize()
	if opts.NewLimiter(5) != custom {
		t.Fatal("custom limiter constructor was replaced")
	}
}

func TestTokenBucket(t *testing.T) {
	if l := tokenBucket(0); l.Limit() != rate.Inf {
		t.Errorf("tokenBucket(0).Limit() = %v, want Inf", l.Limit())
	}
	l := tokenBucket(100)
	if l.Limit() != rate.Limit(100) || l.Burst() != 100 {
		t.Errorf("tokenBucket(100) = limit %v burst %d, want 100/100", l.Limit(), l.Burst())
	}
}
