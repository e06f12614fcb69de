package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/anikchand/videotube/internal/hash"
	"github.com/anikchand/videotube/internal/logging"
	"github.com/anikchand/videotube/internal/models"
	"github.com/anikchand/videotube/internal/tokens"
)

// Service orchestrates login, refresh and logout over the credential check,
// the token codec and the refresh-token store. Per user there is at most one
// valid refresh token at any time; each successful refresh rotates it, and
// the token just presented dies with the rotation.
type Service struct {
	DB    *gorm.DB
	Store *Store
	Codec *tokens.Codec
}

// Result is the session handle returned to the transport layer. User is
// secret-redacted by the model's JSON tags; the expiries drive cookie
// lifetimes.
type Result struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.User
}

// Login authenticates by handle or email (either suffices, password always
// required), issues a token pair and persists the refresh token. No tokens
// are returned unless the store write succeeded.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Result, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")

	ident := strings.ToLower(strings.TrimSpace(identifier))

	var user models.User
	err := s.DB.WithContext(ctx).
		Where("username = ? OR email = ?", ident, ident).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		l.Error("login_failed", "reason", "user lookup", "error", err)
		return nil, storeErr(err)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	res, err := s.issuePair(&user)
	if err != nil {
		l.Error("login_failed", "reason", "token issue", "error", err)
		return nil, err
	}

	if err := s.Store.SetRefreshToken(ctx, user.ID, res.RefreshToken); err != nil {
		l.Error("login_failed", "reason", "store write", "error", err)
		return nil, err
	}

	l.Info("login_successful", "user_id", user.ID)
	return res, nil
}

// Refresh rotates the session: the submitted token must verify as a refresh
// token AND equal the stored value for its subject. The compare and the
// overwrite run as one atomic swap, so a token can never be redeemed twice,
// even by concurrent requests. Every failure surfaces as ErrUnauthorized;
// the client cannot tell expired from reused.
func (s *Service) Refresh(ctx context.Context, submitted string) (*Result, error) {
	l := logging.FromContext(ctx).With("svc", "session.refresh")

	if submitted == "" {
		return nil, ErrUnauthorized
	}

	subject, err := s.Codec.Verify(submitted, tokens.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	userID, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}

	var user models.User
	err = s.DB.WithContext(ctx).Where("id = ?", uint(userID)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		l.Error("refresh_failed", "reason", "user lookup", "error", err)
		return nil, storeErr(err)
	}

	res, err := s.issuePair(&user)
	if err != nil {
		l.Error("refresh_failed", "reason", "token issue", "error", err)
		return nil, err
	}

	swapped, err := s.Store.SwapRefreshToken(ctx, user.ID, submitted, res.RefreshToken)
	if err != nil {
		l.Error("refresh_failed", "reason", "store swap", "error", err)
		return nil, err
	}
	if !swapped {
		// Stale or already-rotated token. Nothing was mutated.
		l.Warn("refresh_rejected", "user_id", user.ID, "reason", "token mismatch")
		return nil, ErrUnauthorized
	}

	l.Info("refresh_successful", "user_id", user.ID)
	return res, nil
}

// Logout clears the stored refresh token for the user. Idempotent.
// Outstanding access tokens stay valid until their natural expiry; only the
// refresh token is tracked server-side.
func (s *Service) Logout(ctx context.Context, userID uint) error {
	if err := s.Store.ClearRefreshToken(ctx, userID); err != nil {
		logging.FromContext(ctx).Error("logout_failed", "user_id", userID, "error", err)
		return err
	}
	logging.FromContext(ctx).Info("logout_successful", "user_id", userID)
	return nil
}

func (s *Service) issuePair(user *models.User) (*Result, error) {
	subject := strconv.FormatUint(uint64(user.ID), 10)

	accessToken, accessExp, err := s.Codec.IssueAccess(subject)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.Codec.IssueRefresh(subject)
	if err != nil {
		return nil, err
	}

	redacted := *user
	redacted.PasswordHash = ""
	redacted.RefreshToken = nil

	return &Result{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		User:         &redacted,
	}, nil
}
