package service

import (
	"context"
	"fmt"

	"casino/internal/config"
	"casino/internal/errs"
	"casino/internal/game"
	"casino/internal/model"
	"casino/internal/random"
	"casino/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewEngine builds the game engine from games.* configuration.
func NewEngine(cfg *config.GamesConfig) (*game.Engine, error) {
	slots, err := game.DefaultSlotMachine(cfg.Slots.Reels)
	if err != nil {
		return nil, err
	}
	return game.NewEngine(game.BlackjackRules{
		Decks:   cfg.Blackjack.Decks,
		StandOn: cfg.Blackjack.StandOn,
	}, slots)
}

// Catalog is the default game list. House edges are nominal.
func Catalog(engine *game.Engine) []model.Game {
	return []model.Game{
		{Name: "Blackjack", Type: string(game.TypeBlackjack), HouseEdge: decimal.RequireFromString("5.50"), IsActive: true},
		{Name: "Roulette Red/Black", Type: string(game.TypeRoulette), HouseEdge: decimal.RequireFromString("2.70"), IsActive: true},
		{Name: "Slots", Type: string(game.TypeSlots), HouseEdge: engine.Slots().HouseEdge(), IsActive: true},
	}
}

// GameService plays one round: resolve it with fresh entropy, then settle
// it through the ledger.
type GameService struct {
	engine    *game.Engine
	ledger    *LedgerService
	userRepo  *repository.UserRepository
	gameRepo  *repository.GameRepository
	newSource func() random.Source
	log       logrus.FieldLogger
}

type GameOption func(*GameService)

// WithSource replaces the crypto source handed to each round.
func WithSource(fn func() random.Source) GameOption {
	return func(s *GameService) { s.newSource = fn }
}

func NewGameService(db *gorm.DB, engine *game.Engine, ledger *LedgerService, log logrus.FieldLogger, opts ...GameOption) *GameService {
	s := &GameService{
		engine:    engine,
		ledger:    ledger,
		userRepo:  repository.NewUserRepository(db),
		gameRepo:  repository.NewGameRepository(db),
		newSource: func() random.Source { return random.NewCrypto() },
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureCatalog creates any missing catalog entries.
func (s *GameService) EnsureCatalog(ctx context.Context) error {
	return s.gameRepo.EnsureCatalog(ctx, Catalog(s.engine))
}

func (s *GameService) ListGames(ctx context.Context) ([]*model.Game, error) {
	return s.gameRepo.List(ctx)
}

type PlayRequest struct {
	UserID int64
	Game   game.Type
	Amount decimal.Decimal
	Params game.Params
}

// Play checks the request against current state without mutating it, so
// no round is drawn for a bet that cannot settle, then resolves and
// settles. The ledger repeats every check authoritatively.
func (s *GameService) Play(ctx context.Context, req PlayRequest) (*Settlement, error) {
	if err := game.ValidateBet(req.Amount); err != nil {
		return nil, err
	}

	g, err := s.gameRepo.GetByType(ctx, nil, string(req.Game))
	if err != nil {
		return nil, err
	}
	if !g.IsActive {
		return nil, fmt.Errorf("game %s is disabled: %w", g.Type, errs.ErrGameUnavailable)
	}

	user, err := s.userRepo.GetByID(ctx, nil, req.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %d: %w", user.ID, errs.ErrInactiveAccount)
	}
	if user.Balance.LessThan(req.Amount) {
		return nil, fmt.Errorf("balance %s below bet %s: %w", user.Balance, req.Amount, errs.ErrInsufficientFunds)
	}

	round, err := s.engine.Resolve(req.Game, req.Amount, req.Params, s.newSource())
	if err != nil {
		if errs.KindOf(err) == errs.KindEntropyUnavailable {
			s.log.WithError(err).WithField("game", req.Game).Error("round not resolved")
		}
		return nil, err
	}

	return s.ledger.Settle(ctx, SettleRequest{
		UserID: req.UserID,
		GameID: g.ID,
		Amount: req.Amount,
		Round:  round,
	})
}
