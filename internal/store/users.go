package store

import (
	"context"
	"fmt"
	"strings"

	"yunmun/api/internal/rbac"
)

func (q queries) InsertUser(ctx context.Context, user User) error {
	_, err := q.exec(ctx, `
		INSERT INTO users (id, display_name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.DisplayName, strings.ToLower(strings.TrimSpace(user.Email)), string(user.Role), q.timeArg(user.CreatedAt))
	if err != nil {
		return wrapWrite("insert user", err)
	}
	return nil
}

func (q queries) GetUserByID(ctx context.Context, userID string) (User, error) {
	var (
		user User
		role string
	)
	err := q.queryRow(ctx, `SELECT id, display_name, email, role, created_at FROM users WHERE id=?`, userID).
		Scan(&user.ID, &user.DisplayName, &user.Email, &role, timeScanner{&user.CreatedAt})
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	user.Role = rbac.Normalize(role)
	return user, nil
}

func (q queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.query(ctx, `SELECT id, display_name, email, role, created_at FROM users ORDER BY display_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var (
			user User
			role string
		)
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &role, timeScanner{&user.CreatedAt}); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Role = rbac.Normalize(role)
		users = append(users, user)
	}
	return users, rows.Err()
}
