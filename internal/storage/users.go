package storage

import (
	"context"

	"fintrack/internal/core"
)

const userColumns = "id, username, email, password_hash, full_name, role, bot_id, created_at"

func scanUser(s scanner) (core.User, error) {
	var (
		u     core.User
		role  string
		botID = nullString(nil)
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &role, &botID, &u.CreatedAt); err != nil {
		return core.User{}, err
	}
	u.Role = core.Role(role)
	u.BotID = stringPtr(botID)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (r *Repository) getUserBy(ctx context.Context, col string, v any) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+col+" = ?", v))
	if err != nil {
		return core.User{}, wrap("get user", err)
	}
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.getUserBy(ctx, "id", id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUserBy(ctx, "username", username)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUserBy(ctx, "email", email)
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap("scan user", err)
		}
		users = append(users, u)
	}
	return users, wrap("list users", rows.Err())
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.CreatedAt = r.stamp()
	id, err := r.insert(ctx, "create user",
		`INSERT INTO users (username, email, password_hash, full_name, role, bot_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FullName, string(u.Role), nullString(u.BotID), u.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	u.ID = id
	return u, nil
}

func (r *Repository) UpdateUser(ctx context.Context, id int64, p core.UserPatch) (core.User, error) {
	var set setList
	if p.Email.Set {
		set.add("email", p.Email.Value)
	}
	if p.FullName.Set {
		set.add("full_name", p.FullName.Value)
	}
	if p.Role.Set {
		set.add("role", string(p.Role.Value))
	}
	if p.BotID.Set {
		set.add("bot_id", nullString(p.BotID.Value))
	}
	if p.PasswordHash.Set {
		set.add("password_hash", p.PasswordHash.Value)
	}
	if err := r.update(ctx, "update user", "users", id, &set); err != nil {
		return core.User{}, err
	}
	return r.GetUser(ctx, id)
}

// DeleteUser removes the user and every session they hold.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	if _, err := r.exec(ctx, "delete user sessions", "DELETE FROM sessions WHERE user_id = ?", id); err != nil {
		return false, err
	}
	return r.deleteByID(ctx, "delete user", "users", id)
}
