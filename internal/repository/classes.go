package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yourusername/report-card/internal/models"
)

// ClassRepository はクラステーブルへのアクセスを提供します。
type ClassRepository struct {
	db *sql.DB
}

// NewClassRepository は ClassRepository を作成します。
func NewClassRepository(db *sql.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classSelect = `
        SELECT id, name, level, section, academic_year, school_id
        FROM classes
`

// Get は ID でクラスを検索します。見つからない場合は nil を返します。
func (r *ClassRepository) Get(ctx context.Context, id int64) (*models.Class, error) {
	var c models.Class
	err := r.db.QueryRowContext(ctx, classSelect+` WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Level, &c.Section, &c.AcademicYear, &c.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListBySchool は学校に属する全クラスを返します。
func (r *ClassRepository) ListBySchool(ctx context.Context, schoolID int64) ([]*models.Class, error) {
	rows, err := r.db.QueryContext(ctx, classSelect+` WHERE school_id = $1 ORDER BY level, section`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []*models.Class
	for rows.Next() {
		var c models.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Level, &c.Section, &c.AcademicYear, &c.SchoolID); err != nil {
			return nil, err
		}
		classes = append(classes, &c)
	}
	return classes, rows.Err()
}

// IDsBySchool は学校に属する全クラスの ID を返します。
func (r *ClassRepository) IDsBySchool(ctx context.Context, schoolID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM classes WHERE school_id = $1 ORDER BY id`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}
