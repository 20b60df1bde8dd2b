// Package repository は PostgreSQL への問い合わせをまとめたデータアクセス層です。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yourusername/report-card/internal/models"
)

// UserRepository はユーザーテーブルへのアクセスを提供します。
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository は UserRepository を作成します。
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userSelect = `
        SELECT u.id, u.email, u.username, u.full_name, u.hashed_password,
               u.role, u.school_id, s.name
        FROM users u
        JOIN schools s ON s.id = u.school_id
`

// FindByEmail はメールアドレスでユーザーを検索します。見つからない場合は nil を返します。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, userSelect+` WHERE u.email = $1`, email))
}

// FindByID は ID でユーザーを検索します。見つからない場合は nil を返します。
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, userSelect+` WHERE u.id = $1`, id))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.HashedPassword,
		&u.Role, &u.SchoolID, &u.SchoolName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
