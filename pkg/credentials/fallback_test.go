package credentials

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter time.Duration
		failures   int
		fallback   bool
		cooldown   time.Duration
	}{
		{"network error", 0, 0, 0, true, 10 * time.Second},
		{"rate limit with retry-after", 429, 7 * time.Second, 3, true, 7 * time.Second},
		{"rate limit exponential", 429, 0, 4, true, 16 * time.Millisecond},
		{"rate limit capped", 429, 0, 30, true, 120 * time.Second},
		{"auth 401", 401, 0, 0, true, 30 * time.Minute},
		{"auth 403", 403, 0, 0, true, 30 * time.Minute},
		{"quota 402", 402, 0, 0, true, 24 * time.Hour},
		{"quota 451", 451, 0, 0, true, 24 * time.Hour},
		{"upstream 500", 500, 0, 0, true, 60 * time.Second},
		{"upstream 503", 503, 0, 0, true, 60 * time.Second},
		{"bad request fatal", 400, 0, 0, false, 0},
		{"not found fatal", 404, 0, 0, false, 0},
		{"unprocessable fatal", 422, 0, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.status, tt.retryAfter, tt.failures)
			if d.ShouldFallback != tt.fallback {
				t.Errorf("ShouldFallback = %v, want %v", d.ShouldFallback, tt.fallback)
			}
			if d.Cooldown != tt.cooldown {
				t.Errorf("Cooldown = %v, want %v", d.Cooldown, tt.cooldown)
			}
		})
	}
}

func TestBackoffGrowth(t *testing.T) {
	prev := time.Duration(0)
	for n := 0; n < 17; n++ {
		d := backoff(n)
		if d <= prev {
			t.Fatalf("backoff(%d) = %v, not increasing past %v", n, d, prev)
		}
		if d > maxBackoff {
			t.Fatalf("backoff(%d) = %v exceeds cap", n, d)
		}
		prev = d
	}
	if backoff(40) != maxBackoff {
		t.Errorf("backoff(40) = %v, want cap %v", backoff(40), maxBackoff)
	}
	if backoff(-1) != time.Millisecond {
		t.Errorf("backoff(-1) = %v, want 1ms", backoff(-1))
	}
}
