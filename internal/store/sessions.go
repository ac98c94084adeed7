package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/svcerr"
)

// ActiveSessionByToken returns svcerr.ErrInvalidSession when the token is unknown or deactivated.
func (s *LedgerStore) ActiveSessionByToken(ctx context.Context, token string) (*models.GameSession, error) {
	var session models.GameSession
	err := s.DB.WithContext(ctx).
		Where("session_token = ? AND is_active = ?", token, true).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcerr.ErrInvalidSession
	}
	if err != nil {
		return nil, svcerr.Persistence(err)
	}
	return &session, nil
}

// OpenSession deactivates every active session of the user, voids their unused
// launch tokens and stores the new session with its launch token.
func (s *LedgerStore) OpenSession(ctx context.Context, session *models.GameSession, launch *models.GameLaunchToken) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		var previous []string
		err := tx.Model(&models.GameSession{}).
			Where("user_id = ? AND is_active = ?", session.UserId, true).
			Pluck("id", &previous).Error
		if err != nil {
			return svcerr.Persistence(err)
		}

		if len(previous) > 0 {
			err = tx.Model(&models.GameSession{}).
				Where("id IN ?", previous).
				Updates(map[string]interface{}{"is_active": false, "ended_at": session.StartedAt}).Error
			if err != nil {
				return svcerr.Persistence(err)
			}
			err = tx.Model(&models.GameLaunchToken{}).
				Where("game_session_id IN ? AND used = ?", previous, false).
				Update("used", true).Error
			if err != nil {
				return svcerr.Persistence(err)
			}
		}

		if err := tx.Create(session).Error; err != nil {
			return svcerr.Persistence(err)
		}
		return svcerr.Persistence(tx.Create(launch).Error)
	})
}

// RedeemLaunchToken marks a launch token used and returns its session.
func (s *LedgerStore) RedeemLaunchToken(ctx context.Context, token string, now time.Time) (*models.GameSession, error) {
	var session models.GameSession
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		var launch models.GameLaunchToken
		err := tx.Where("launch_token = ?", token).First(&launch).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcerr.ErrInvalidLaunchToken
		}
		if err != nil {
			return svcerr.Persistence(err)
		}
		if launch.Used {
			return svcerr.ErrLaunchTokenUsed
		}
		if now.After(launch.ExpiresAt) {
			return svcerr.ErrInvalidLaunchToken
		}

		res := tx.Model(&models.GameLaunchToken{}).
			Where("id = ? AND used = ?", launch.ID, false).
			Update("used", true)
		if res.Error != nil {
			return svcerr.Persistence(res.Error)
		}
		if res.RowsAffected == 0 {
			return svcerr.ErrLaunchTokenUsed
		}

		err = tx.Where("id = ? AND is_active = ?", launch.GameSessionId, true).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcerr.ErrInvalidSession
		}
		return svcerr.Persistence(err)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}
