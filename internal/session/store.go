package session

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/anikchand/videotube/internal/models"
)

// Store owns the persisted per-user refresh token: the nullable
// refresh_token column on the users row. It is the single point of truth
// for revocation; anything not equal to the stored value is dead.
type Store struct {
	DB *gorm.DB
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// SetRefreshToken overwrites the stored token, invalidating whatever value
// was there before.
func (s *Store) SetRefreshToken(ctx context.Context, userID uint, token string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", token)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// GetRefreshToken returns the stored token, or "" when no session exists.
func (s *Store) GetRefreshToken(ctx context.Context, userID uint) (string, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Select("refresh_token").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPrincipalNotFound
		}
		return "", storeErr(err)
	}
	if user.RefreshToken == nil {
		return "", nil
	}
	return *user.RefreshToken, nil
}

// ClearRefreshToken drops the stored token. Idempotent: clearing an absent
// token or an unknown user is not an error.
func (s *Store) ClearRefreshToken(ctx context.Context, userID uint) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", nil)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	return nil
}

// SwapRefreshToken replaces old with next only if old is still the stored
// value, as a single conditional UPDATE. The database serializes racing
// updates on the row, so of N concurrent swaps presenting the same old token
// exactly one observes a row change; the rest see swapped=false and must
// treat the token as stale.
func (s *Store) SwapRefreshToken(ctx context.Context, userID uint, old, next string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", userID, old).
		Update("refresh_token", next)
	if res.Error != nil {
		return false, storeErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}
