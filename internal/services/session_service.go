package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/store"
	"cupgame-wallet/pkg/common"
)

const (
	sessionTokenBytes = 32
	LaunchTokenTTL    = 2 * time.Minute
)

type SessionService struct {
	Store *store.LedgerStore
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewSessionService(st *store.LedgerStore, log zerolog.Logger) *SessionService {
	return &SessionService{Store: st, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

type OpenedSession struct {
	SessionId    string    `json:"session_id"`
	SessionToken string    `json:"session_token"`
	LaunchToken  string    `json:"launch_token"`
	ExpiresAt    time.Time `json:"launch_expires_at"`
}

// OpenSession issues a fresh game session for a user who owns a wallet. Any
// session the user still has open is deactivated.
func (s *SessionService) OpenSession(ctx context.Context, userId int, gameName string) (*OpenedSession, error) {
	if _, err := s.Store.WalletByUser(ctx, userId); err != nil {
		return nil, err
	}

	token, err := common.GenerateToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	launch, err := common.GenerateToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	session := &models.GameSession{
		ID:           uuid.NewString(),
		UserId:       userId,
		GameName:     gameName,
		SessionToken: token,
		IsActive:     true,
		StartedAt:    now,
	}
	launchToken := &models.GameLaunchToken{
		ID:            uuid.NewString(),
		GameSessionId: session.ID,
		LaunchToken:   launch,
		ExpiresAt:     now.Add(LaunchTokenTTL),
	}

	if err := s.Store.OpenSession(ctx, session, launchToken); err != nil {
		return nil, err
	}

	s.Log.Info().Int("user_id", userId).Str("session_id", session.ID).Msg("game session opened")
	return &OpenedSession{
		SessionId:    session.ID,
		SessionToken: token,
		LaunchToken:  launch,
		ExpiresAt:    launchToken.ExpiresAt,
	}, nil
}

// RedeemLaunchToken exchanges a single-use launch token for its session.
func (s *SessionService) RedeemLaunchToken(ctx context.Context, launchToken string) (*models.GameSession, error) {
	return s.Store.RedeemLaunchToken(ctx, launchToken, s.Now())
}
