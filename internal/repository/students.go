package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/yourusername/report-card/internal/models"
)

// StudentRepository は生徒テーブルへのアクセスを提供します。
// テナント分離や役割によるフィルタはここでは行わず、呼び出し側が
// authz.Policy を通してから利用します。
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository は StudentRepository を作成します。
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentSelect = `
        SELECT st.id, st.student_no, st.first_name, st.last_name,
               st.date_of_birth, st.gender, st.school_id, st.class_id, c.name
        FROM students st
        JOIN classes c ON c.id = st.class_id
`

// Get は ID で生徒を検索します。見つからない場合は nil を返します。
func (r *StudentRepository) Get(ctx context.Context, id int64) (*models.Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, studentSelect+` WHERE st.id = $1`, id))
}

// ListBySchool は学校に属する全生徒を返します。
func (r *StudentRepository) ListBySchool(ctx context.Context, schoolID int64) ([]*models.Student, error) {
	rows, err := r.db.QueryContext(ctx, studentSelect+` WHERE st.school_id = $1 ORDER BY st.id`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

// ListByClasses は指定クラス群に属する生徒を返します（学校でも絞り込みます）。
func (r *StudentRepository) ListByClasses(ctx context.Context, schoolID int64, classIDs []int64) ([]*models.Student, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		studentSelect+` WHERE st.school_id = $1 AND st.class_id = ANY($2) ORDER BY st.id`,
		schoolID, pq.Array(classIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

// IDsBySchool は学校に属する全生徒の ID を返します。
func (r *StudentRepository) IDsBySchool(ctx context.Context, schoolID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM students WHERE school_id = $1 ORDER BY id`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// IDsByClasses は指定クラス群に属する生徒の ID を返します。
func (r *StudentRepository) IDsByClasses(ctx context.Context, schoolID int64, classIDs []int64) ([]int64, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM students WHERE school_id = $1 AND class_id = ANY($2) ORDER BY id`,
		schoolID, pq.Array(classIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func scanStudent(row *sql.Row) (*models.Student, error) {
	var (
		st     models.Student
		dob    sql.NullTime
		gender sql.NullString
	)
	err := row.Scan(&st.ID, &st.StudentNo, &st.FirstName, &st.LastName,
		&dob, &gender, &st.SchoolID, &st.ClassID, &st.ClassName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if dob.Valid {
		st.DateOfBirth = &dob.Time
	}
	st.Gender = gender.String
	return &st, nil
}

func collectStudents(rows *sql.Rows) ([]*models.Student, error) {
	var students []*models.Student
	for rows.Next() {
		var (
			st     models.Student
			dob    sql.NullTime
			gender sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.StudentNo, &st.FirstName, &st.LastName,
			&dob, &gender, &st.SchoolID, &st.ClassID, &st.ClassName); err != nil {
			return nil, err
		}
		if dob.Valid {
			st.DateOfBirth = &dob.Time
		}
		st.Gender = gender.String
		students = append(students, &st)
	}
	return students, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
