package similarity

import (
	"testing"

	"github.com/radieske/prediction-core-poc/internal/normalize"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "arsenal", "arsenal", 1},
		{"both empty", "", "", 1},
		{"one empty", "arsenal", "", 0},
		{"disjoint", "abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := Score(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Score(%q,%q) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestScore_PartialOverlap(t *testing.T) {
	// "chelsea" vs "chelsee": distância 1, maxLen 7 => 6/7
	got := Score("chelsea", "chelsee")
	want := 6.0 / 7.0
	if got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScore_NormalizedVariantsClearThreshold(t *testing.T) {
	a := normalize.Team("Manchester United FC")
	b := normalize.Team("Man Utd")
	if got := Score(a, b); got < DefaultThreshold {
		t.Errorf("Score(%q,%q) = %v, want >= %v", a, b, got, DefaultThreshold)
	}
}

func TestSameFixture_StraightSides(t *testing.T) {
	if !SameFixture("Arsenal FC", "Chelsea", "Arsenal", "Chelsea FC", DefaultThreshold) {
		t.Error("expected same fixture for straight sides")
	}
}

func TestSameFixture_SwappedSides(t *testing.T) {
	if !SameFixture("Arsenal", "Chelsea", "Chelsea", "Arsenal", DefaultThreshold) {
		t.Error("expected same fixture with home/away swapped")
	}
}

func TestSameFixture_DifferentFixtures(t *testing.T) {
	if SameFixture("Arsenal", "Chelsea", "Liverpool", "Everton", DefaultThreshold) {
		t.Error("distinct fixtures must not match")
	}
}
