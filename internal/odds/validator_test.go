package odds

import (
	"testing"

	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

func f(v float64) *float64 { return &v }

func record(home, away string, hw, aw, draw *float64) events.RawOddsRecord {
	return events.RawOddsRecord{
		Source:   "oddsportal",
		HomeTeam: home,
		AwayTeam: away,
		HomeWin:  hw,
		AwayWin:  aw,
		Draw:     draw,
	}
}

func newTestValidator() *Validator {
	return NewValidator(map[string]MarketShape{
		"tennis":   TwoWay,
		"football": ThreeWay,
	})
}

func TestValidate_Accepts(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		sport string
		rec   events.RawOddsRecord
	}{
		{"fair 2way", "tennis", record("Alcaraz", "Sinner", f(1.90), f(2.10), nil)},
		{"3way with draw", "football", record("Arsenal", "Chelsea", f(2.50), f(3.00), f(3.20))},
		{"3way draw missing is tolerated", "football", record("Arsenal", "Chelsea", f(1.80), f(2.20), nil)},
		{"unknown sport defaults to 3way", "handball", record("Kiel", "Flensburg", f(2.00), f(2.40), f(6.00))},
	}
	for _, tt := range tests {
		if !v.Validate(tt.sport, tt.rec) {
			t.Errorf("%s: expected record to be accepted", tt.name)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		sport string
		rec   events.RawOddsRecord
	}{
		{"missing home name", "football", record("", "Chelsea", f(1.90), f(2.10), nil)},
		{"one-char name", "football", record("A", "Chelsea", f(1.90), f(2.10), nil)},
		{"missing home win", "football", record("Arsenal", "Chelsea", nil, f(2.10), nil)},
		{"missing away win", "football", record("Arsenal", "Chelsea", f(1.90), nil, nil)},
		{"price below floor", "tennis", record("Alcaraz", "Sinner", f(1.005), f(2.10), nil)},
		{"price above ceiling", "football", record("Arsenal", "Chelsea", f(1200), f(2.10), nil)},
		{"draw out of range", "football", record("Arsenal", "Chelsea", f(2.50), f(3.00), f(1.001))},
		{"implied sum too low", "football", record("Arsenal", "Chelsea", f(3.00), f(3.50), nil)},
		{"implied sum too high", "football", record("Arsenal", "Chelsea", f(1.10), f(1.20), f(2.00))},
	}
	for _, tt := range tests {
		if v.Validate(tt.sport, tt.rec) {
			t.Errorf("%s: expected record to be rejected", tt.name)
		}
	}
}

func TestValidate_TwoWayIgnoresDraw(t *testing.T) {
	v := newTestValidator()

	// Empate fora de faixa em esporte 2way é ignorado, não rejeitado.
	rec := record("Alcaraz", "Sinner", f(1.90), f(2.10), f(0.5))
	if !v.Validate("tennis", rec) {
		t.Error("2way sport must ignore scraped draw price")
	}
}

func TestValidate_LongName(t *testing.T) {
	v := newTestValidator()

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	rec := record(string(long), "Chelsea", f(1.90), f(2.10), nil)
	if v.Validate("football", rec) {
		t.Error("names longer than 100 chars must be rejected")
	}
}
