package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

type RefreshTokenRepository struct {
	db *gormsqlite.DB
}

func NewRefreshTokenRepository(db *gormsqlite.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// FindByToken returns revoked and expired tokens too; callers decide.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var model refreshTokenModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where("token = ? AND is_deleted = ?", token, false).First(&model).Error
	})
	if err != nil {
		return nil, notFound(err, "find refresh token")
	}
	return model.toDomain(), nil
}

func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	var rows []refreshTokenModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where("user_id = ? AND revoked_at IS NULL AND expires_at > ? AND is_deleted = ?", userID, now.UTC(), false).
			Order("id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list active refresh tokens: %w", err)
	}
	result := make([]*domain.RefreshToken, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
