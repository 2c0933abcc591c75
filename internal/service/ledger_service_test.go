package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"casino/internal/errs"
	"casino/internal/game"
	"casino/internal/infrastructure/lock"
	"casino/internal/model"

	"gorm.io/gorm"
)

func c(rank int) game.Card { return game.Card{Rank: rank, Suit: game.Hearts} }

func TestSettle_BlackjackScenario(t *testing.T) {
	f := newFixture(t)
	u := f.user("100")

	// player 10,9 stands on 19; dealer 10,5 draws a 2 to 17
	round, err := game.DefaultBlackjackRules().Deal(dec("20"), []game.Card{c(10), c(9), c(10), c(5), c(2)})
	if err != nil {
		t.Fatal(err)
	}
	round.ID = "bj-1"

	s, err := f.ledger.Settle(context.Background(), SettleRequest{UserID: u.ID, GameID: f.gameID(game.TypeBlackjack), Amount: dec("20"), Round: round})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Bet.Payout.Equal(dec("40")) || s.Bet.Outcome != "win" {
		t.Fatalf("bet = %+v", s.Bet)
	}
	if !s.NewBalance.Equal(dec("120")) || !f.balance(u.ID).Equal(dec("120")) {
		t.Fatalf("balance = %s / %s", s.NewBalance, f.balance(u.ID))
	}
	if !s.Bet.BalanceBefore.Equal(dec("100")) || !s.Bet.BalanceAfter.Equal(dec("120")) {
		t.Fatalf("before/after = %s/%s", s.Bet.BalanceBefore, s.Bet.BalanceAfter)
	}
	f.assertAudit()
}

func TestSettle_RouletteZeroScenario(t *testing.T) {
	f := newFixture(t)
	u := f.user("50")

	s, err := f.ledger.Settle(context.Background(), SettleRequest{
		UserID: u.ID, GameID: f.gameID(game.TypeRoulette), Amount: dec("10"), Round: rouletteRound("r-0", "10", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Bet.Outcome != "lose" || !f.balance(u.ID).Equal(dec("40")) {
		t.Fatalf("outcome %s balance %s", s.Bet.Outcome, f.balance(u.ID))
	}
}

func TestSettle_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broke := f.user("0")
	rich := f.user("100")
	inactive := f.user("100")
	if err := f.accounts.Deactivate(ctx, inactive.ID); err != nil {
		t.Fatal(err)
	}
	roulette := f.gameID(game.TypeRoulette)
	slots := f.gameID(game.TypeSlots)

	zeroBet := rouletteRound("r-zero", "10", 1)
	zeroBet.Bet = dec("0")

	tests := []struct {
		name   string
		req    SettleRequest
		target error
	}{
		{"no funds", SettleRequest{broke.ID, roulette, dec("1"), rouletteRound("r1", "1", 1)}, errs.ErrInsufficientFunds},
		{"inactive", SettleRequest{inactive.ID, roulette, dec("1"), rouletteRound("r2", "1", 1)}, errs.ErrInactiveAccount},
		{"zero amount", SettleRequest{rich.ID, roulette, dec("0"), zeroBet}, errs.ErrInvalidBet},
		{"amount differs from round", SettleRequest{rich.ID, roulette, dec("5"), rouletteRound("r3", "10", 1)}, errs.ErrInvalidBet},
		{"round for another game", SettleRequest{rich.ID, slots, dec("10"), rouletteRound("r4", "10", 1)}, errs.ErrGameUnavailable},
		{"unknown user", SettleRequest{999, roulette, dec("1"), rouletteRound("r5", "1", 1)}, errs.ErrNotFound},
		{"malformed round", SettleRequest{rich.ID, roulette, dec("10"), game.RoundResult{ID: "r6", Game: game.TypeRoulette, Bet: dec("10")}}, errs.ErrInvalidBet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Settle(ctx, tt.req)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
			if !errs.IsRejection(err) {
				t.Fatalf("%v should classify as a rejection", err)
			}
		})
	}

	if !f.balance(broke.ID).IsZero() || !f.balance(rich.ID).Equal(dec("100")) || !f.balance(inactive.ID).Equal(dec("100")) {
		t.Fatal("a rejected settlement changed a balance")
	}
	var bets int64
	f.db.Model(&model.Bet{}).Count(&bets)
	if bets != 0 {
		t.Fatalf("%d bets written by rejected settlements", bets)
	}
	f.assertAudit()
}

func TestSettle_DisabledGame(t *testing.T) {
	f := newFixture(t)
	u := f.user("100")
	id := f.gameID(game.TypeRoulette)
	if err := f.db.Model(&model.Game{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}
	_, err := f.ledger.Settle(context.Background(), SettleRequest{u.ID, id, dec("1"), rouletteRound("r", "1", 1)})
	if !errors.Is(err, errs.ErrGameUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestSettle_RoundSettlesOnce(t *testing.T) {
	f := newFixture(t)
	u := f.user("100")
	req := SettleRequest{u.ID, f.gameID(game.TypeRoulette), dec("10"), rouletteRound("same-round", "10", 1)}

	if _, err := f.ledger.Settle(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	_, err := f.ledger.Settle(context.Background(), req)
	if !errors.Is(err, errs.ErrDuplicateSettlement) {
		t.Fatalf("err = %v", err)
	}
	if n := f.betCount(u.ID); n != 1 {
		t.Fatalf("%d bets for one round", n)
	}
	if !f.balance(u.ID).Equal(dec("110")) {
		t.Fatalf("balance = %s", f.balance(u.ID))
	}
}

func TestSettle_WritesOutboxMessage(t *testing.T) {
	f := newFixture(t)
	u := f.user("10")
	s, err := f.ledger.Settle(context.Background(), SettleRequest{u.ID, f.gameID(game.TypeRoulette), dec("10"), rouletteRound("r-out", "10", 1)})
	if err != nil {
		t.Fatal(err)
	}

	var msg model.OutboxMessage
	if err := f.db.Where("topic = ?", "casino.bet.settled").First(&msg).Error; err != nil {
		t.Fatal(err)
	}
	if msg.MessageKey != fmt.Sprint(u.ID) || msg.Status != model.OutboxStatusPending {
		t.Fatalf("msg = %+v", msg)
	}
	if want := `"bet_no":"` + s.Bet.BetNo + `"`; !strings.Contains(msg.Payload, want) {
		t.Fatalf("payload %s lacks %s", msg.Payload, want)
	}
}

// stealVersion bumps the user's version right before the ledger's
// compare-and-swap, as a concurrent writer on another node would.
func stealVersion(t *testing.T, db *gorm.DB, userID int64, times int) {
	t.Helper()
	remaining := times
	err := db.Callback().Update().Before("gorm:update").Register("test:steal_version", func(tx *gorm.DB) {
		if tx.Statement.Table != "users" || remaining == 0 {
			return
		}
		remaining--
		if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE users SET version = version + 1 WHERE id = ?", userID); err != nil {
			tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSettle_RetriesVersionConflict(t *testing.T) {
	f := newFixture(t)
	u := f.user("100")
	stealVersion(t, f.db, u.ID, 2)

	s, err := f.ledger.Settle(context.Background(), SettleRequest{u.ID, f.gameID(game.TypeRoulette), dec("10"), rouletteRound("r-retry", "10", 2)})
	if err != nil {
		t.Fatalf("settle after two conflicts: %v", err)
	}
	if !s.NewBalance.Equal(dec("90")) || !f.balance(u.ID).Equal(dec("90")) {
		t.Fatalf("balance = %s", f.balance(u.ID))
	}
}

func TestSettle_ConflictSurfacesAsRetryable(t *testing.T) {
	f := newFixture(t)
	u := f.user("100")
	stealVersion(t, f.db, u.ID, 1000)

	_, err := f.ledger.Settle(context.Background(), SettleRequest{u.ID, f.gameID(game.TypeRoulette), dec("10"), rouletteRound("r-busy", "10", 2)})
	if !errors.Is(err, errs.ErrTransientConflict) || !errs.Retryable(err) {
		t.Fatalf("err = %v", err)
	}
	if n := f.betCount(u.ID); n != 0 {
		t.Fatalf("%d bets after failed settlement", n)
	}
	if !f.balance(u.ID).Equal(dec("100")) {
		t.Fatalf("balance = %s", f.balance(u.ID))
	}
}

// N settlements race for a balance that covers K of them.
func TestSettle_ConcurrentExactlyK(t *testing.T) {
	lockers := map[string]lock.Locker{"local": lock.NewLocal(), "none": lock.Noop{}}
	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, withLocker(l))
			u := f.user("50")
			gameID := f.gameID(game.TypeRoulette)

			const n, k = 20, 5
			var (
				wg           sync.WaitGroup
				mu           sync.Mutex
				ok, declined int
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					// pocket 2 is black: every red bet loses its 10
					_, err := f.ledger.Settle(context.Background(), SettleRequest{u.ID, gameID, dec("10"), rouletteRound(fmt.Sprintf("race-%d", i), "10", 2)})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, errs.ErrInsufficientFunds):
						declined++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			if ok != k || declined != n-k {
				t.Fatalf("ok=%d declined=%d, want %d/%d", ok, declined, k, n-k)
			}
			if !f.balance(u.ID).IsZero() {
				t.Fatalf("final balance %s", f.balance(u.ID))
			}
			if got := f.betCount(u.ID); got != k {
				t.Fatalf("%d bet rows", got)
			}
			f.assertAudit()
		})
	}
}

func TestSettle_DifferentUsersDoNotBlock(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("10"), f.user("10")
	gameID := f.gameID(game.TypeRoulette)

	hold, err := f.ledger.writer.locker.Acquire(context.Background(), lock.UserKey(a.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer hold()

	if _, err := f.ledger.Settle(context.Background(), SettleRequest{b.ID, gameID, dec("1"), rouletteRound("b-1", "1", 1)}); err != nil {
		t.Fatalf("user b blocked by user a: %v", err)
	}
}
