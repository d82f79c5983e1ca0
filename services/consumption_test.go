package services

import "testing"

func TestComputeConsumption(t *testing.T) {
	cases := []struct {
		previous, current, expected int
	}{
		{100, 150, 50},
		{100, 100, 0},
		{150, 100, -50}, // negatives pass through, not clamped
		{0, 220, 220},
	}

	for _, c := range cases {
		if got := ComputeConsumption(c.previous, c.current); got != c.expected {
			t.Errorf("ComputeConsumption(%d, %d) = %d, expected %d",
				c.previous, c.current, got, c.expected)
		}
	}
}

func TestReplacementConsumption(t *testing.T) {
	if got := ReplacementConsumption(1200, 1200); got != 0 {
		t.Errorf("Expected 0 when the meter never moved, got %d", got)
	}
	if got := ReplacementConsumption(1200, 1240); got != 40 {
		t.Errorf("Expected 40, got %d", got)
	}
	if got := ReplacementConsumption(1240, 1200); got != -40 {
		t.Errorf("Expected -40 passthrough, got %d", got)
	}
}
