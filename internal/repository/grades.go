package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/yourusername/report-card/internal/models"
)

// GradeRepository は成績テーブルへのアクセスを提供します。
type GradeRepository struct {
	db *sql.DB
}

// NewGradeRepository は GradeRepository を作成します。
func NewGradeRepository(db *sql.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeSelect = `
        SELECT g.id, g.student_id, g.term_id, g.subject_id, s.name, g.score,
               COALESCE(g.modified_by_id, 0)
        FROM grades g
        JOIN subjects s ON s.id = g.subject_id
`

// ListForStudent は生徒の成績を返します。termID が 0 の場合は全学期分を返します。
func (r *GradeRepository) ListForStudent(ctx context.Context, studentID, termID int64) ([]*models.Grade, error) {
	query := gradeSelect + ` WHERE g.student_id = $1`
	args := []any{studentID}
	if termID > 0 {
		query += ` AND g.term_id = $2`
		args = append(args, termID)
	}
	query += ` ORDER BY g.subject_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrades(rows)
}

// ListForStudents は複数生徒の成績をまとめて返します。termID が 0 の場合は全学期分です。
func (r *GradeRepository) ListForStudents(ctx context.Context, studentIDs []int64, termID int64) ([]*models.Grade, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	query := gradeSelect + ` WHERE g.student_id = ANY($1)`
	args := []any{pq.Array(studentIDs)}
	if termID > 0 {
		query += ` AND g.term_id = $2`
		args = append(args, termID)
	}
	query += ` ORDER BY g.student_id, g.subject_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrades(rows)
}

// HistoryForSubject は生徒のある教科の成績を学期番号順（古い順）で返します。
// 学期の名前と番号も結合して取得します。
func (r *GradeRepository) HistoryForSubject(ctx context.Context, studentID, subjectID int64) ([]*models.Grade, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT g.id, g.student_id, g.term_id, g.subject_id, s.name,
               t.name, t.term_number, g.score, COALESCE(g.modified_by_id, 0)
        FROM grades g
        JOIN subjects s ON s.id = g.subject_id
        JOIN terms t ON t.id = g.term_id
        WHERE g.student_id = $1 AND g.subject_id = $2
        ORDER BY t.term_number
    `, studentID, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []*models.Grade
	for rows.Next() {
		var g models.Grade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.TermID, &g.SubjectID,
			&g.SubjectName, &g.TermName, &g.TermNumber, &g.Score, &g.ModifiedByID); err != nil {
			return nil, err
		}
		grades = append(grades, &g)
	}
	return grades, rows.Err()
}

// Upsert は成績を保存します。(student_id, term_id, subject_id) が既に存在する場合は
// 一意制約に基づいてその行を更新します。レースした作成同士もここで一本化されます。
func (r *GradeRepository) Upsert(ctx context.Context, g *models.Grade) error {
	return r.db.QueryRowContext(ctx, `
        INSERT INTO grades (student_id, term_id, subject_id, score, modified_by_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (student_id, term_id, subject_id)
        DO UPDATE SET score = EXCLUDED.score,
                      modified_by_id = EXCLUDED.modified_by_id,
                      updated_at = now()
        RETURNING id
    `, g.StudentID, g.TermID, g.SubjectID, g.Score, g.ModifiedByID).Scan(&g.ID)
}

// ListSubjects は全教科を返します。
func (r *GradeRepository) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, code FROM subjects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []*models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Code); err != nil {
			return nil, err
		}
		subjects = append(subjects, &s)
	}
	return subjects, rows.Err()
}

func collectGrades(rows *sql.Rows) ([]*models.Grade, error) {
	var grades []*models.Grade
	for rows.Next() {
		var g models.Grade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.TermID, &g.SubjectID,
			&g.SubjectName, &g.Score, &g.ModifiedByID); err != nil {
			return nil, err
		}
		grades = append(grades, &g)
	}
	return grades, rows.Err()
}
