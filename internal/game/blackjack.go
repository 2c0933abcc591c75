package game

import (
	"errors"
	"fmt"
	"strconv"

	"casino/internal/random"

	"github.com/shopspring/decimal"
)

// Suit of a playing card.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

var suits = [4]Suit{Spades, Hearts, Diamonds, Clubs}

// Card ranks run 1 (ace) to 13 (king).
const (
	Ace   = 1
	Jack  = 11
	Queen = 12
	King  = 13
)

type Card struct {
	Rank int
	Suit Suit
}

func (c Card) String() string {
	var r string
	switch c.Rank {
	case Ace:
		r = "A"
	case Jack:
		r = "J"
	case Queen:
		r = "Q"
	case King:
		r = "K"
	default:
		r = strconv.Itoa(c.Rank)
	}
	return r + string(c.Suit)
}

// MarshalText renders cards as "A♠", "10♥" in round metadata.
func (c Card) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// points counts face cards as 10 and an ace as 1.
func (c Card) points() int {
	if c.Rank >= 10 {
		return 10
	}
	return c.Rank
}

// HardTotal is the sum with every ace counted as 1.
func HardTotal(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.points()
	}
	return total
}

// HandValue counts one ace as 11 when that does not bust the hand.
func HandValue(cards []Card) int {
	total, aces := HardTotal(cards), 0
	for _, c := range cards {
		if c.Rank == Ace {
			aces++
		}
	}
	if aces > 0 && total+10 <= 21 {
		total += 10
	}
	return total
}

// IsNatural reports a two-card 21.
func IsNatural(cards []Card) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}

// NewShoe returns decks standard 52-card decks in suit-major order.
func NewShoe(decks int) []Card {
	shoe := make([]Card, 0, decks*52)
	for d := 0; d < decks; d++ {
		for _, s := range suits {
			for r := Ace; r <= King; r++ {
				shoe = append(shoe, Card{Rank: r, Suit: s})
			}
		}
	}
	return shoe
}

// ============================================================================
// Rules and auto-play
// ============================================================================

var (
	multNatural = decimal.RequireFromString("2.5")
	multWin     = decimal.NewFromInt(2)
	multPush    = decimal.NewFromInt(1)
	multLose    = decimal.Zero
)

var errShoeExhausted = errors.New("shoe exhausted")

// BlackjackRules is the fixed non-interactive policy: both hands draw while
// their value is below StandOn.
type BlackjackRules struct {
	Decks   int
	StandOn int
}

func DefaultBlackjackRules() BlackjackRules {
	return BlackjackRules{Decks: 6, StandOn: 17}
}

func (r BlackjackRules) Validate() error {
	if r.Decks < 1 || r.Decks > 8 {
		return fmt.Errorf("blackjack: decks must be in [1,8], got %d", r.Decks)
	}
	if r.StandOn < 12 || r.StandOn > 21 {
		return fmt.Errorf("blackjack: stand_on must be in [12,21], got %d", r.StandOn)
	}
	return nil
}

type BlackjackDetail struct {
	Player        []Card `json:"player"`
	Dealer        []Card `json:"dealer"`
	PlayerValue   int    `json:"player_value"`
	DealerValue   int    `json:"dealer_value"`
	PlayerNatural bool   `json:"player_natural"`
	DealerNatural bool   `json:"dealer_natural"`
}

func (*BlackjackDetail) GameType() Type { return TypeBlackjack }

func (d *BlackjackDetail) validate() error {
	if d == nil {
		return errors.New("nil blackjack detail")
	}
	if len(d.Player) < 2 || len(d.Dealer) < 2 {
		return errors.New("blackjack hands need at least two cards")
	}
	if d.PlayerValue != HandValue(d.Player) || d.DealerValue != HandValue(d.Dealer) {
		return errors.New("blackjack totals do not match cards")
	}
	return nil
}

// Play shuffles a fresh shoe and auto-plays one round.
func (r BlackjackRules) Play(bet decimal.Decimal, src random.Source) (RoundResult, error) {
	shoe := NewShoe(r.Decks)
	if err := src.Shuffle(len(shoe), func(i, j int) { shoe[i], shoe[j] = shoe[j], shoe[i] }); err != nil {
		return RoundResult{}, fmt.Errorf("shuffle shoe: %w", err)
	}
	return r.Deal(bet, shoe)
}

// Deal plays a round from an already ordered shoe, drawing from the front:
// two cards to the player, two to the dealer, then the player's hits and
// the dealer's hits. The dealer draws even when the player has busted or
// holds a natural; a natural pays 3:2 only if it beats the dealer's final
// total and pushes against any dealer 21.
func (r BlackjackRules) Deal(bet decimal.Decimal, shoe []Card) (RoundResult, error) {
	next := 0
	draw := func() (Card, error) {
		if next >= len(shoe) {
			return Card{}, errShoeExhausted
		}
		c := shoe[next]
		next++
		return c, nil
	}
	drawTo := func(hand []Card) ([]Card, error) {
		for HandValue(hand) < r.StandOn {
			c, err := draw()
			if err != nil {
				return nil, err
			}
			hand = append(hand, c)
		}
		return hand, nil
	}

	var player, dealer []Card
	for _, hand := range []*[]Card{&player, &player, &dealer, &dealer} {
		c, err := draw()
		if err != nil {
			return RoundResult{}, err
		}
		*hand = append(*hand, c)
	}

	detail := &BlackjackDetail{
		PlayerNatural: IsNatural(player),
		DealerNatural: IsNatural(dealer),
	}

	// both hands always play out, so the detail holds every card dealt
	var err error
	if player, err = drawTo(player); err != nil {
		return RoundResult{}, err
	}
	if dealer, err = drawTo(dealer); err != nil {
		return RoundResult{}, err
	}
	pv, dv := HandValue(player), HandValue(dealer)

	var mult decimal.Decimal
	switch {
	case pv > 21:
		mult = multLose
	case dv > 21 || pv > dv:
		mult = multWin
		if detail.PlayerNatural {
			mult = multNatural
		}
	case pv == dv:
		mult = multPush
	default:
		mult = multLose
	}

	detail.Player = player
	detail.Dealer = dealer
	detail.PlayerValue = HandValue(player)
	detail.DealerValue = HandValue(dealer)
	return newResult(TypeBlackjack, bet, mult, detail), nil
}
