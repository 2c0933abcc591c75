// Package game resolves casino rounds from random draws.
//
// Resolution is a pure computation: the same draws always give the same
// RoundResult. Nothing here touches storage; settlement of a result is the
// ledger's job.
package game

import (
	"fmt"
	"strings"

	"casino/internal/errs"
	"casino/internal/random"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the catalog tag of a game variant.
type Type string

const (
	TypeBlackjack Type = "blackjack"
	TypeRoulette  Type = "roulette"
	TypeSlots     Type = "slots"
)

// Types lists every supported variant.
var Types = []Type{TypeBlackjack, TypeRoulette, TypeSlots}

func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeBlackjack, TypeRoulette, TypeSlots:
		return t, nil
	}
	return "", fmt.Errorf("unknown game type %q: %w", s, errs.ErrGameUnavailable)
}

// Outcome is the settled tag of a round.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomePush Outcome = "push"
)

// MoneyPlaces is the number of decimal places carried by every amount.
const MoneyPlaces = 2

// Detail is the game-specific part of a round. Implemented only by
// *BlackjackDetail, *RouletteDetail and *SlotsDetail.
type Detail interface {
	GameType() Type
	validate() error
}

// RoundResult is the outcome of one resolved round.
//
// Payout is the total amount returned to the player, stake included:
// a lost round pays 0, a push pays the bet, an even-money win pays 2x.
type RoundResult struct {
	ID         string          `json:"round_id"`
	Game       Type            `json:"game"`
	Bet        decimal.Decimal `json:"bet"`
	Outcome    Outcome         `json:"outcome"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Detail     Detail          `json:"detail"`
}

// Net is the balance change the round causes: Payout - Bet.
func (r RoundResult) Net() decimal.Decimal {
	return r.Payout.Sub(r.Bet)
}

// Validate checks that the result is complete and self-consistent. The
// ledger calls it before persisting anything.
func (r RoundResult) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("round result: missing id: %w", errs.ErrInvalidBet)
	}
	if err := ValidateBet(r.Bet); err != nil {
		return err
	}
	if r.Payout.IsNegative() || r.Multiplier.IsNegative() {
		return fmt.Errorf("round result %s: negative payout: %w", r.ID, errs.ErrInvalidBet)
	}
	if !r.Payout.Equal(payoutFor(r.Bet, r.Multiplier)) {
		return fmt.Errorf("round result %s: payout %s does not match %s x %s: %w",
			r.ID, r.Payout, r.Bet, r.Multiplier, errs.ErrInvalidBet)
	}
	if want := outcomeFor(r.Bet, r.Payout); r.Outcome != want {
		return fmt.Errorf("round result %s: outcome %q, payout implies %q: %w", r.ID, r.Outcome, want, errs.ErrInvalidBet)
	}
	if r.Detail == nil {
		return fmt.Errorf("round result %s: missing detail: %w", r.ID, errs.ErrInvalidBet)
	}

	switch d := r.Detail.(type) {
	case *BlackjackDetail, *RouletteDetail, *SlotsDetail:
		if d.GameType() != r.Game {
			return fmt.Errorf("round result %s: %s detail on %s round: %w", r.ID, d.GameType(), r.Game, errs.ErrInvalidBet)
		}
		if err := d.validate(); err != nil {
			return fmt.Errorf("round result %s: %v: %w", r.ID, err, errs.ErrInvalidBet)
		}
	default:
		return fmt.Errorf("round result %s: unsupported detail %T: %w", r.ID, d, errs.ErrInvalidBet)
	}
	return nil
}

// ValidateBet rejects non-positive amounts and amounts finer than a cent.
func ValidateBet(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("bet amount %s must be positive: %w", amount, errs.ErrInvalidBet)
	}
	if !amount.Equal(amount.Truncate(MoneyPlaces)) {
		return fmt.Errorf("bet amount %s has more than %d decimal places: %w", amount, MoneyPlaces, errs.ErrInvalidBet)
	}
	return nil
}

// payoutFor rounds toward zero, so fractional cents stay with the house.
func payoutFor(bet, multiplier decimal.Decimal) decimal.Decimal {
	return bet.Mul(multiplier).Truncate(MoneyPlaces)
}

func outcomeFor(bet, payout decimal.Decimal) Outcome {
	switch payout.Cmp(bet) {
	case 1:
		return OutcomeWin
	case 0:
		return OutcomePush
	}
	return OutcomeLose
}

func newResult(game Type, bet, multiplier decimal.Decimal, detail Detail) RoundResult {
	payout := payoutFor(bet, multiplier)
	return RoundResult{
		Game:       game,
		Bet:        bet,
		Outcome:    outcomeFor(bet, payout),
		Multiplier: multiplier,
		Payout:     payout,
		Detail:     detail,
	}
}

// Params carries the player's per-game choices.
type Params struct {
	// Color is the roulette bet; ignored by other games.
	Color Color
}

// ============================================================================
// Engine
// ============================================================================

// Engine dispatches a round to its variant. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	blackjack BlackjackRules
	slots     *SlotMachine
	newID     func() string
}

type Option func(*Engine)

// WithRoundIDs replaces the uuid generator used for RoundResult.ID.
func WithRoundIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(bj BlackjackRules, slots *SlotMachine, opts ...Option) (*Engine, error) {
	if err := bj.Validate(); err != nil {
		return nil, err
	}
	if slots == nil {
		return nil, fmt.Errorf("game: slot machine is required")
	}
	e := &Engine{blackjack: bj, slots: slots, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Resolve plays one round of gameType for bet using draws from src.
func (e *Engine) Resolve(gameType Type, bet decimal.Decimal, params Params, src random.Source) (RoundResult, error) {
	if err := ValidateBet(bet); err != nil {
		return RoundResult{}, err
	}

	var (
		res RoundResult
		err error
	)
	switch gameType {
	case TypeBlackjack:
		res, err = e.blackjack.Play(bet, src)
	case TypeRoulette:
		res, err = PlayRoulette(bet, params.Color, src)
	case TypeSlots:
		res, err = e.slots.Spin(bet, src)
	default:
		return RoundResult{}, fmt.Errorf("resolve %q: %w", gameType, errs.ErrGameUnavailable)
	}
	if err != nil {
		return RoundResult{}, fmt.Errorf("resolve %s: %w", gameType, err)
	}

	res.ID = e.newID()
	return res, nil
}

// Slots exposes the configured machine (paytable, expected return).
func (e *Engine) Slots() *SlotMachine {
	return e.slots
}

// BlackjackRules returns the configured blackjack policy.
func (e *Engine) BlackjackRules() BlackjackRules {
	return e.blackjack
}
