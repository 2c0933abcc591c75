package game

import (
	"errors"
	"fmt"
	"math/big"

	"casino/internal/random"

	"github.com/shopspring/decimal"
)

type Symbol string

const (
	Seven   Symbol = "7"
	Bar     Symbol = "BAR"
	Diamond Symbol = "DIAMOND"
	Cherry  Symbol = "CHERRY"
	Bell    Symbol = "BELL"
	Star    Symbol = "STAR"
	Lemon   Symbol = "LEMON"
)

// ReelSymbol is one entry of the reel strip with its draw weight.
type ReelSymbol struct {
	Symbol Symbol
	Weight int
}

// PayRule matches when Symbol appears on exactly Count reels. Count 0
// means every reel.
type PayRule struct {
	Name       string
	Symbol     Symbol
	Count      int
	Multiplier decimal.Decimal
}

func (p PayRule) matches(reels []Symbol) bool {
	n := 0
	for _, s := range reels {
		if s == p.Symbol {
			n++
		}
	}
	if p.Count == 0 {
		return n == len(reels)
	}
	return n == p.Count
}

// DefaultReel weights sum to 100. Rare symbols carry the big multipliers.
var DefaultReel = []ReelSymbol{
	{Seven, 3},
	{Bar, 6},
	{Diamond, 9},
	{Cherry, 12},
	{Bell, 18},
	{Star, 22},
	{Lemon, 30},
}

// DefaultPaytable is evaluated top to bottom; the first matching rule pays.
// With DefaultReel on 3 reels the expected return is 0.970485 per unit bet.
var DefaultPaytable = []PayRule{
	{"all sevens", Seven, 0, decimal.NewFromInt(100)},
	{"all bars", Bar, 0, decimal.NewFromInt(50)},
	{"all diamonds", Diamond, 0, decimal.NewFromInt(25)},
	{"all cherries", Cherry, 0, decimal.NewFromInt(15)},
	{"all bells", Bell, 0, decimal.NewFromInt(10)},
	{"all stars", Star, 0, decimal.NewFromInt(6)},
	{"all lemons", Lemon, 0, decimal.NewFromInt(3)},
	{"two cherries", Cherry, 2, decimal.NewFromInt(4)},
	{"one cherry", Cherry, 1, decimal.NewFromInt(2)},
}

const maxReels = 6

// SlotMachine is an immutable reel strip and paytable.
type SlotMachine struct {
	reels       int
	strip       []ReelSymbol
	table       []PayRule
	totalWeight int
	rtp         *big.Rat
}

// NewSlotMachine validates the configuration and refuses any table whose
// analytic expected return is not strictly below 1.
func NewSlotMachine(reels int, strip []ReelSymbol, table []PayRule) (*SlotMachine, error) {
	if reels < 1 || reels > maxReels {
		return nil, fmt.Errorf("slots: reels must be in [1,%d], got %d", maxReels, reels)
	}
	if len(strip) == 0 {
		return nil, errors.New("slots: empty reel strip")
	}

	known := make(map[Symbol]bool, len(strip))
	total := 0
	for _, rs := range strip {
		if rs.Weight <= 0 {
			return nil, fmt.Errorf("slots: symbol %s has non-positive weight %d", rs.Symbol, rs.Weight)
		}
		if known[rs.Symbol] {
			return nil, fmt.Errorf("slots: duplicate symbol %s", rs.Symbol)
		}
		known[rs.Symbol] = true
		total += rs.Weight
	}
	for _, p := range table {
		if !known[p.Symbol] {
			return nil, fmt.Errorf("slots: rule %q references unknown symbol %s", p.Name, p.Symbol)
		}
		if p.Count < 0 || p.Count > reels {
			return nil, fmt.Errorf("slots: rule %q count %d out of range", p.Name, p.Count)
		}
		if p.Multiplier.IsNegative() {
			return nil, fmt.Errorf("slots: rule %q has negative multiplier", p.Name)
		}
	}

	m := &SlotMachine{
		reels:       reels,
		strip:       append([]ReelSymbol(nil), strip...),
		table:       append([]PayRule(nil), table...),
		totalWeight: total,
	}
	m.rtp = m.expectedReturn()
	if m.rtp.Cmp(big.NewRat(1, 1)) >= 0 {
		f, _ := m.rtp.Float64()
		return nil, fmt.Errorf("slots: expected return %.6f leaves no house edge", f)
	}
	return m, nil
}

// DefaultSlotMachine uses DefaultReel and DefaultPaytable on the given reel count.
func DefaultSlotMachine(reels int) (*SlotMachine, error) {
	return NewSlotMachine(reels, DefaultReel, DefaultPaytable)
}

func (m *SlotMachine) Reels() int { return m.reels }

// ExpectedReturn is the exact expected payout per unit bet.
func (m *SlotMachine) ExpectedReturn() *big.Rat {
	return new(big.Rat).Set(m.rtp)
}

// HouseEdge is 1 - ExpectedReturn, as a percentage rounded to 2 places.
func (m *SlotMachine) HouseEdge() decimal.Decimal {
	edge := new(big.Rat).Sub(big.NewRat(1, 1), m.rtp)
	edge.Mul(edge, big.NewRat(100, 1))
	return decimal.RequireFromString(edge.FloatString(2))
}

// Match returns the first rule paying on reels.
func (m *SlotMachine) Match(reels []Symbol) (PayRule, bool) {
	for _, p := range m.table {
		if p.matches(reels) {
			return p, true
		}
	}
	return PayRule{}, false
}

// expectedReturn enumerates every reel combination. The strip is small
// (7 symbols, up to 6 reels) so this stays well under 10^6 combinations.
func (m *SlotMachine) expectedReturn() *big.Rat {
	sum := new(big.Rat)
	idx := make([]int, m.reels)
	reels := make([]Symbol, m.reels)
	denom := new(big.Int).Exp(big.NewInt(int64(m.totalWeight)), big.NewInt(int64(m.reels)), nil)

	for {
		weight := big.NewInt(1)
		for i, k := range idx {
			reels[i] = m.strip[k].Symbol
			weight.Mul(weight, big.NewInt(int64(m.strip[k].Weight)))
		}
		if p, ok := m.Match(reels); ok {
			term := new(big.Rat).SetFrac(weight, denom)
			sum.Add(sum, term.Mul(term, p.Multiplier.Rat()))
		}

		i := 0
		for ; i < m.reels; i++ {
			idx[i]++
			if idx[i] < len(m.strip) {
				break
			}
			idx[i] = 0
		}
		if i == m.reels {
			return sum
		}
	}
}

type SlotsDetail struct {
	Symbols    []Symbol        `json:"symbols"`
	Rule       string          `json:"rule,omitempty"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

func (*SlotsDetail) GameType() Type { return TypeSlots }

func (d *SlotsDetail) validate() error {
	if d == nil {
		return errors.New("nil slots detail")
	}
	if len(d.Symbols) == 0 {
		return errors.New("slots detail has no symbols")
	}
	return nil
}

// Spin draws one weighted symbol per reel and looks up the paytable.
func (m *SlotMachine) Spin(bet decimal.Decimal, src random.Source) (RoundResult, error) {
	reels := make([]Symbol, m.reels)
	for i := range reels {
		s, err := m.drawSymbol(src)
		if err != nil {
			return RoundResult{}, fmt.Errorf("spin reel %d: %w", i+1, err)
		}
		reels[i] = s
	}
	return m.Evaluate(bet, reels), nil
}

// Evaluate settles bet against a fixed set of reel symbols.
func (m *SlotMachine) Evaluate(bet decimal.Decimal, reels []Symbol) RoundResult {
	detail := &SlotsDetail{Symbols: reels, Multiplier: decimal.Zero}
	if p, ok := m.Match(reels); ok {
		detail.Rule = p.Name
		detail.Multiplier = p.Multiplier
	}
	return newResult(TypeSlots, bet, detail.Multiplier, detail)
}

func (m *SlotMachine) drawSymbol(src random.Source) (Symbol, error) {
	v, err := src.IntN(m.totalWeight)
	if err != nil {
		return "", err
	}
	cum := 0
	for _, rs := range m.strip {
		cum += rs.Weight
		if v < cum {
			return rs.Symbol, nil
		}
	}
	return m.strip[len(m.strip)-1].Symbol, nil
}
