package service

import (
	"context"
	"fmt"
	"testing"

	"casino/internal/config"
	"casino/internal/game"
	"casino/internal/infrastructure/dbtest"
	"casino/internal/infrastructure/lock"
	"casino/internal/infrastructure/logger"
	"casino/internal/model"
	"casino/internal/random"
	"casino/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{MaxSettleAttempts: 3, LockMode: config.LockModeLocal},
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{
			BetSettled:        "casino.bet.settled",
			WalletTransaction: "casino.wallet.transaction",
		}},
		Games: config.GamesConfig{
			Blackjack: config.BlackjackConfig{Decks: 6, StandOn: 17},
			Slots:     config.SlotsConfig{Reels: 3},
		},
	}
}

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	engine   *game.Engine
	ledger   *LedgerService
	accounts *AccountService
	games    *GameService
	history  *HistoryService
}

type fixtureOption func(*fixtureSettings)

type fixtureSettings struct {
	locker   lock.Locker
	source   func() random.Source
	mutate   func(*config.Config)
	historyF func(db *gorm.DB) *HistoryService
}

func withLocker(l lock.Locker) fixtureOption {
	return func(s *fixtureSettings) { s.locker = l }
}

func withRoundSource(fn func() random.Source) fixtureOption {
	return func(s *fixtureSettings) { s.source = fn }
}

func withConfig(fn func(*config.Config)) fixtureOption {
	return func(s *fixtureSettings) { s.mutate = fn }
}

func withHistory(fn func(db *gorm.DB) *HistoryService) fixtureOption {
	return func(s *fixtureSettings) { s.historyF = fn }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	settings := &fixtureSettings{locker: lock.NewLocal()}
	for _, opt := range opts {
		opt(settings)
	}

	cfg := testConfig()
	if settings.mutate != nil {
		settings.mutate(cfg)
	}
	db := dbtest.New(t)
	log := logger.Discard()

	engine, err := NewEngine(&cfg.Games)
	if err != nil {
		t.Fatal(err)
	}
	ledger := NewLedgerService(db, settings.locker, cfg, log)
	history := NewHistoryService(db, nil, log)
	if settings.historyF != nil {
		history = settings.historyF(db)
	}
	ledger.SetInvalidator(history)

	var gameOpts []GameOption
	if settings.source != nil {
		gameOpts = append(gameOpts, WithSource(settings.source))
	}
	games := NewGameService(db, engine, ledger, log, gameOpts...)
	if err := games.EnsureCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		t:        t,
		db:       db,
		engine:   engine,
		ledger:   ledger,
		accounts: NewAccountService(db, settings.locker, cfg, log),
		games:    games,
		history:  history,
	}
}

// user opens an account and funds it through a completed deposit so the
// conservation audit stays balanced.
func (f *fixture) user(balance string) *model.User {
	f.t.Helper()
	ctx := context.Background()
	name := fmt.Sprintf("player%d", f.countUsers()+1)
	u, err := f.accounts.OpenAccount(ctx, name, name+"@example.com", "opaque")
	if err != nil {
		f.t.Fatal(err)
	}
	if b := dec(balance); b.IsPositive() {
		if _, err := f.accounts.Deposit(ctx, u.ID, b, "seed"); err != nil {
			f.t.Fatal(err)
		}
	}
	u, err = f.accounts.GetUser(ctx, u.ID)
	if err != nil {
		f.t.Fatal(err)
	}
	return u
}

func (f *fixture) countUsers() int64 {
	var n int64
	f.db.Model(&model.User{}).Count(&n)
	return n
}

func (f *fixture) gameID(gt game.Type) int64 {
	f.t.Helper()
	g, err := repository.NewGameRepository(f.db).GetByType(context.Background(), nil, string(gt))
	if err != nil {
		f.t.Fatal(err)
	}
	return g.ID
}

func (f *fixture) balance(userID int64) decimal.Decimal {
	f.t.Helper()
	b, err := f.accounts.GetBalance(context.Background(), userID)
	if err != nil {
		f.t.Fatal(err)
	}
	return b
}

func (f *fixture) betCount(userID int64) int64 {
	var n int64
	f.db.Model(&model.Bet{}).Where("user_id = ?", userID).Count(&n)
	return n
}

func (f *fixture) assertAudit() {
	f.t.Helper()
	report, err := f.accounts.Audit(context.Background())
	if err != nil {
		f.t.Fatal(err)
	}
	if !report.Balanced {
		f.t.Fatalf("conservation broken: %+v", report)
	}
}

// rouletteRound is a settled-ready red bet on pocket n.
func rouletteRound(id string, bet string, n int) game.RoundResult {
	r := game.SpinResult(dec(bet), game.Red, n)
	r.ID = id
	return r
}

// identitySource never reorders: shuffles leave the shoe in factory order
// and IntN always returns 0.
type identitySource struct{}

func (identitySource) IntN(n int) (int, error)                  { return 0, nil }
func (identitySource) Float64() (float64, error)                { return 0, nil }
func (identitySource) Shuffle(n int, swap func(i, j int)) error { return nil }
