package localmedia

import (
	"math"
	"testing"
)

func TestFrameTimestampsEvenSpacing(t *testing.T) {
	got := FrameTimestamps(60, 3)
	want := []float64{15, 30, 45}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("timestamp[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFrameTimestampsStayInsideClip(t *testing.T) {
	duration := 7.3
	got := FrameTimestamps(duration, 6)
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	for i, ts := range got {
		if ts <= 0 || ts >= duration {
			t.Fatalf("timestamp[%d] = %v escapes (0, %v)", i, ts, duration)
		}
		if i > 0 && ts <= got[i-1] {
			t.Fatalf("timestamps must increase, got %v", got)
		}
	}
}

func TestFrameTimestampsDegenerateInputs(t *testing.T) {
	if got := FrameTimestamps(0, 6); got != nil {
		t.Fatalf("zero duration should yield nil, got %v", got)
	}
	if got := FrameTimestamps(10, 0); got != nil {
		t.Fatalf("zero count should yield nil, got %v", got)
	}
	if got := FrameTimestamps(-5, 3); got != nil {
		t.Fatalf("negative duration should yield nil, got %v", got)
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := parseFrameRate("30000/1001"); math.Abs(got-29.97) > 0.01 {
		t.Fatalf("parseFrameRate(30000/1001) = %v", got)
	}
	if got := parseFrameRate("25"); got != 25 {
		t.Fatalf("parseFrameRate(25) = %v", got)
	}
	if got := parseFrameRate("1/0"); got != 0 {
		t.Fatalf("zero denominator should yield 0, got %v", got)
	}
	if got := parseFrameRate(""); got != 0 {
		t.Fatalf("empty rate should yield 0, got %v", got)
	}
}
