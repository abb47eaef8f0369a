package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

const botConfigColumns = "id, bot_token, is_active, created_at"

func scanBotConfig(s scanner) (core.BotConfig, error) {
	var b core.BotConfig
	if err := s.Scan(&b.ID, &b.BotToken, &b.IsActive, &b.CreatedAt); err != nil {
		return core.BotConfig{}, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func (r *Repository) GetActiveBotConfig(ctx context.Context) (core.BotConfig, error) {
	b, err := scanBotConfig(r.queryRow(ctx,
		"SELECT "+botConfigColumns+" FROM bot_configs WHERE is_active = ? ORDER BY id LIMIT 1", true))
	if err != nil {
		return core.BotConfig{}, wrap("get active bot config", err)
	}
	return b, nil
}

func (r *Repository) ListBotConfigs(ctx context.Context) ([]core.BotConfig, error) {
	rows, err := r.query(ctx, "SELECT "+botConfigColumns+" FROM bot_configs ORDER BY id")
	if err != nil {
		return nil, wrap("list bot configs", err)
	}
	defer rows.Close()

	out := make([]core.BotConfig, 0)
	for rows.Next() {
		b, err := scanBotConfig(rows)
		if err != nil {
			return nil, wrap("scan bot config", err)
		}
		out = append(out, b)
	}
	return out, wrap("list bot configs", rows.Err())
}

func (r *Repository) CreateBotConfig(ctx context.Context, b core.BotConfig) (core.BotConfig, error) {
	b.CreatedAt = r.stamp()
	id, err := r.insert(ctx, "create bot config",
		"INSERT INTO bot_configs (bot_token, is_active, created_at) VALUES (?, ?, ?)",
		b.BotToken, b.IsActive, b.CreatedAt)
	if err != nil {
		return core.BotConfig{}, err
	}
	b.ID = id
	return b, nil
}

func (r *Repository) UpdateBotConfig(ctx context.Context, id int64, p core.BotConfigPatch) (core.BotConfig, error) {
	var set setList
	if p.BotToken.Set {
		set.add("bot_token", p.BotToken.Value)
	}
	if p.IsActive.Set {
		set.add("is_active", p.IsActive.Value)
	}
	if err := r.update(ctx, "update bot config", "bot_configs", id, &set); err != nil {
		return core.BotConfig{}, err
	}
	b, err := scanBotConfig(r.queryRow(ctx, "SELECT "+botConfigColumns+" FROM bot_configs WHERE id = ?", id))
	if err != nil {
		return core.BotConfig{}, wrap("get bot config", err)
	}
	return b, nil
}

func (r *Repository) DeleteBotConfig(ctx context.Context, id int64) (bool, error) {
	return r.deleteByID(ctx, "delete bot config", "bot_configs", id)
}

// Sessions

func (r *Repository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.exec(ctx, "create session",
		"INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.UTC(), r.stamp())
	return err
}

func (r *Repository) GetSession(ctx context.Context, token string) (core.Session, error) {
	var s core.Session
	err := r.queryRow(ctx, "SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?", token).
		Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return core.Session{}, wrap("get session", err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (r *Repository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	res, err := r.exec(ctx, "renew session", "UPDATE sessions SET expires_at = ? WHERE token = ?", expiresAt.UTC(), token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrap("renew session", err)
	} else if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.exec(ctx, "delete session", "DELETE FROM sessions WHERE token = ?", token)
	return err
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.exec(ctx, "delete expired sessions", "DELETE FROM sessions WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete expired sessions", err)
	}
	return n, nil
}
