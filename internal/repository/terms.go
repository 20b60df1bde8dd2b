package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yourusername/report-card/internal/models"
)

// TermRepository は学期テーブルへのアクセスを提供します。
type TermRepository struct {
	db *sql.DB
}

// NewTermRepository は TermRepository を作成します。
func NewTermRepository(db *sql.DB) *TermRepository {
	return &TermRepository{db: db}
}

const termSelect = `
        SELECT id, name, academic_year, term_number, start_date, end_date, school_id
        FROM terms
`

// Get は ID で学期を検索します。見つからない場合は nil を返します。
func (r *TermRepository) Get(ctx context.Context, id int64) (*models.Term, error) {
	var t models.Term
	err := r.db.QueryRowContext(ctx, termSelect+` WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.AcademicYear, &t.TermNumber, &t.StartDate, &t.EndDate, &t.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListBySchool は学校の全学期を返します。
func (r *TermRepository) ListBySchool(ctx context.Context, schoolID int64) ([]*models.Term, error) {
	rows, err := r.db.QueryContext(ctx,
		termSelect+` WHERE school_id = $1 ORDER BY academic_year, term_number`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []*models.Term
	for rows.Next() {
		var t models.Term
		if err := rows.Scan(&t.ID, &t.Name, &t.AcademicYear, &t.TermNumber,
			&t.StartDate, &t.EndDate, &t.SchoolID); err != nil {
			return nil, err
		}
		terms = append(terms, &t)
	}
	return terms, rows.Err()
}
