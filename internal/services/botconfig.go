package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// ErrBotNotImplemented is returned by the webhook while a bot is
// configured; message handling does not exist yet.
var ErrBotNotImplemented = errors.New("bot integration not implemented")

// BotConfigView is a bot config safe to hand to clients.
type BotConfigView struct {
	ID          int64     `json:"id"`
	TokenMasked string    `json:"botToken"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BotConfigInput replaces the active bot config. A nil IsActive keeps the
// current flag, or activates a new config.
type BotConfigInput struct {
	BotToken string `json:"botToken"`
	IsActive *bool  `json:"isActive"`
}

type WebhookStatus string

const WebhookIgnored WebhookStatus = "ignored"

// MaskToken hides all but the last four characters of a bot token.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

func viewOf(b core.BotConfig) BotConfigView {
	return BotConfigView{ID: b.ID, TokenMasked: MaskToken(b.BotToken), IsActive: b.IsActive, CreatedAt: b.CreatedAt}
}

// BotConfigService stores the configuration of the chat bot placeholder.
// Callers are expected to have checked for the admin role.
type BotConfigService struct {
	store store.BotConfigStore
}

func NewBotConfigService(st store.BotConfigStore) *BotConfigService {
	return &BotConfigService{store: st}
}

// GetConfig returns the active config with its token masked.
func (s *BotConfigService) GetConfig(ctx context.Context) (BotConfigView, error) {
	b, err := s.store.GetActiveBotConfig(ctx)
	if err != nil {
		return BotConfigView{}, err
	}
	return viewOf(b), nil
}

// PutConfig updates the active config, or creates one when none is active.
func (s *BotConfigService) PutConfig(ctx context.Context, in BotConfigInput) (BotConfigView, error) {
	token := strings.TrimSpace(in.BotToken)

	cur, err := s.store.GetActiveBotConfig(ctx)
	if errors.Is(err, core.ErrNotFound) {
		if token == "" {
			v := core.NewValidationError()
			v.Add("botToken", "bot token is required")
			return BotConfigView{}, v
		}
		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}
		created, err := s.store.CreateBotConfig(ctx, core.BotConfig{BotToken: token, IsActive: active})
		if err != nil {
			return BotConfigView{}, err
		}
		return viewOf(created), nil
	}
	if err != nil {
		return BotConfigView{}, err
	}

	var p core.BotConfigPatch
	if token != "" {
		p.BotToken = core.Some(token)
	}
	if in.IsActive != nil {
		p.IsActive = core.Some(*in.IsActive)
	}
	updated, err := s.store.UpdateBotConfig(ctx, cur.ID, p)
	if err != nil {
		return BotConfigView{}, err
	}
	return viewOf(updated), nil
}

// Webhook accepts an inbound bot update. Without an active config the
// update is ignored.
func (s *BotConfigService) Webhook(ctx context.Context) (WebhookStatus, error) {
	_, err := s.store.GetActiveBotConfig(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return WebhookIgnored, nil
	}
	if err != nil {
		return "", err
	}
	return "", ErrBotNotImplemented
}
