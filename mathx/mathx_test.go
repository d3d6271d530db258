package mathx

import (
	"math"
	"testing"
)

func TestRoundNFiveDigits(t *testing.T) {
	out := RoundN(4.0/3.0, 5)
	if out != 1.33333 {
		t.Errorf("expected 1.33333, got %v", out)
	}
}

func TestRoundNHalfToEven(t *testing.T) {
	if out := RoundN(0.5, 0); out != 0 {
		t.Errorf("expected 0.5 to round to 0, got %v", out)
	}
	if out := RoundN(1.5, 0); out != 2 {
		t.Errorf("expected 1.5 to round to 2, got %v", out)
	}
}

func TestRoundNNegative(t *testing.T) {
	if out := RoundN(-1.234567, 3); out != -1.235 {
		t.Errorf("expected -1.235, got %v", out)
	}
}

func TestRoundNPassesThroughInf(t *testing.T) {
	if out := RoundN(math.Inf(1), 5); !math.IsInf(out, 1) {
		t.Errorf("expected +Inf, got %v", out)
	}
}

func TestEqualNSixDigits(t *testing.T) {
	if !EqualN(1.3533528, 1.3533531, 6) {
		t.Error("expected values differing past the sixth digit to compare equal")
	}
	if EqualN(1.353352, 1.353362, 6) {
		t.Error("expected values differing in the fifth digit to compare unequal")
	}
}
