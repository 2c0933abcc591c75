package game

import (
	"errors"
	"testing"

	"casino/internal/errs"
	"casino/internal/random"

	"github.com/shopspring/decimal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	slots, err := DefaultSlotMachine(3)
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(DefaultBlackjackRules(), slots, WithRoundIDs(func() string { return "round-1" }))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestValidateBet(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"10", true},
		{"0.01", true},
		{"12.50", true},
		{"0", false},
		{"-5", false},
		{"1.005", false},
	}
	for _, tt := range tests {
		err := ValidateBet(decimal.RequireFromString(tt.amount))
		if tt.ok && err != nil {
			t.Errorf("%s: %v", tt.amount, err)
		}
		if !tt.ok && !errors.Is(err, errs.ErrInvalidBet) {
			t.Errorf("%s: err = %v, want ErrInvalidBet", tt.amount, err)
		}
	}
}

func TestEngine_Resolve(t *testing.T) {
	e := newTestEngine(t)
	bet := decimal.NewFromInt(10)

	for _, gt := range Types {
		t.Run(string(gt), func(t *testing.T) {
			res, err := e.Resolve(gt, bet, Params{Color: Black}, random.NewCrypto())
			if err != nil {
				t.Fatal(err)
			}
			if res.ID != "round-1" || res.Game != gt {
				t.Fatalf("got id=%q game=%s", res.ID, res.Game)
			}
			if err := res.Validate(); err != nil {
				t.Fatal(err)
			}
			if !res.Net().Equal(res.Payout.Sub(bet)) {
				t.Fatalf("net %s", res.Net())
			}
		})
	}
}

func TestEngine_Rejections(t *testing.T) {
	e := newTestEngine(t)
	src := random.NewCrypto()

	if _, err := e.Resolve(TypeSlots, decimal.Zero, Params{}, src); !errors.Is(err, errs.ErrInvalidBet) {
		t.Errorf("zero bet: %v", err)
	}
	if _, err := e.Resolve("poker", decimal.NewFromInt(1), Params{}, src); !errors.Is(err, errs.ErrGameUnavailable) {
		t.Errorf("unknown game: %v", err)
	}
	if _, err := e.Resolve(TypeRoulette, decimal.NewFromInt(1), Params{Color: Green}, src); !errors.Is(err, errs.ErrInvalidBet) {
		t.Errorf("green bet: %v", err)
	}
	if _, err := e.Resolve(TypeRoulette, decimal.NewFromInt(1), Params{Color: Red}, random.NewScripted()); !errors.Is(err, errs.ErrEntropyUnavailable) {
		t.Errorf("no entropy: %v", err)
	}
}

func TestNewEngine_Validates(t *testing.T) {
	slots, _ := DefaultSlotMachine(3)
	if _, err := NewEngine(BlackjackRules{Decks: 0, StandOn: 17}, slots); err == nil {
		t.Error("bad rules accepted")
	}
	if _, err := NewEngine(DefaultBlackjackRules(), nil); err == nil {
		t.Error("nil slot machine accepted")
	}
}

func TestRoundResult_Validate(t *testing.T) {
	good := SpinResult(decimal.NewFromInt(10), Red, 1)
	good.ID = "r"

	tests := []struct {
		name   string
		mutate func(r *RoundResult)
	}{
		{"missing id", func(r *RoundResult) { r.ID = "" }},
		{"payout mismatch", func(r *RoundResult) { r.Payout = decimal.NewFromInt(25) }},
		{"wrong outcome", func(r *RoundResult) { r.Outcome = OutcomeLose }},
		{"nil detail", func(r *RoundResult) { r.Detail = nil }},
		{"detail of another game", func(r *RoundResult) { r.Detail = &SlotsDetail{Symbols: []Symbol{Lemon}} }},
		{"typed nil detail", func(r *RoundResult) { r.Detail = (*RouletteDetail)(nil) }},
		{"inconsistent pocket", func(r *RoundResult) { r.Detail = &RouletteDetail{Number: 2, Color: Red, Chosen: Red} }},
	}
	if err := good.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, errs.ErrInvalidBet) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	if gt, err := ParseType(" Slots"); err != nil || gt != TypeSlots {
		t.Fatalf("got %s %v", gt, err)
	}
	if _, err := ParseType("baccarat"); !errors.Is(err, errs.ErrGameUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
