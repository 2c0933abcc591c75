package repository

import (
	"context"
	"errors"
	"fmt"

	"casino/internal/errs"
	"casino/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrGameNotFound = fmt.Errorf("no such game: %w", errs.ErrGameUnavailable)

type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

// EnsureCatalog inserts any entry whose type is not present yet. Existing
// rows, including their active flag, are left alone.
func (r *GameRepository) EnsureCatalog(ctx context.Context, games []model.Game) error {
	for i := range games {
		g := games[i]
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "type"}},
				DoNothing: true,
			}).
			Create(&g).Error
		if err != nil {
			return fmt.Errorf("ensure game %s: %w", g.Type, err)
		}
	}
	return nil
}

func (r *GameRepository) GetByType(ctx context.Context, tx *gorm.DB, gameType string) (*model.Game, error) {
	if tx == nil {
		tx = r.db
	}
	var game model.Game
	err := tx.WithContext(ctx).Where("type = ?", gameType).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (r *GameRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Game, error) {
	if tx == nil {
		tx = r.db
	}
	var game model.Game
	err := tx.WithContext(ctx).Where("id = ?", id).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (r *GameRepository) List(ctx context.Context) ([]*model.Game, error) {
	var games []*model.Game
	err := r.db.WithContext(ctx).Order("id ASC").Find(&games).Error
	return games, err
}

func (r *GameRepository) SetActive(ctx context.Context, gameType string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Game{}).
		Where("type = ?", gameType).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGameNotFound
	}
	return nil
}
