package game

import (
	"errors"
	"fmt"
	"strings"

	"casino/internal/errs"
	"casino/internal/random"

	"github.com/shopspring/decimal"
)

type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// Pockets on a single-zero wheel: 0..36.
const Pockets = 37

// European wheel red pockets; every other non-zero pocket is black.
var redPockets = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// PocketColor returns green for 0.
func PocketColor(n int) Color {
	switch {
	case n == 0:
		return Green
	case redPockets[n]:
		return Red
	default:
		return Black
	}
}

// ParseColor accepts only the colors a player can bet on.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if c != Red && c != Black {
		return "", fmt.Errorf("color must be 'red' or 'black', got %q: %w", s, errs.ErrInvalidBet)
	}
	return c, nil
}

type RouletteDetail struct {
	Number int   `json:"number"`
	Color  Color `json:"color"`
	Chosen Color `json:"chosen"`
}

func (*RouletteDetail) GameType() Type { return TypeRoulette }

func (d *RouletteDetail) validate() error {
	if d == nil {
		return errors.New("nil roulette detail")
	}
	if d.Number < 0 || d.Number >= Pockets {
		return fmt.Errorf("pocket %d off the wheel", d.Number)
	}
	if d.Color != PocketColor(d.Number) {
		return fmt.Errorf("pocket %d is not %s", d.Number, d.Color)
	}
	return nil
}

// PlayRoulette spins once for an even-money color bet.
func PlayRoulette(bet decimal.Decimal, chosen Color, src random.Source) (RoundResult, error) {
	if _, err := ParseColor(string(chosen)); err != nil {
		return RoundResult{}, err
	}
	n, err := src.IntN(Pockets)
	if err != nil {
		return RoundResult{}, fmt.Errorf("spin wheel: %w", err)
	}
	return SpinResult(bet, chosen, n), nil
}

// SpinResult settles a color bet against pocket n.
func SpinResult(bet decimal.Decimal, chosen Color, n int) RoundResult {
	color := PocketColor(n)
	mult := multLose
	if color == chosen {
		mult = multWin
	}
	return newResult(TypeRoulette, bet, mult, &RouletteDetail{Number: n, Color: color, Chosen: chosen})
}
