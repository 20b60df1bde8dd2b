package repository

import (
	"context"
	"database/sql"
)

// AssignmentRepository は担任教師とクラスの割り当てテーブルへのアクセスを提供します。
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository は AssignmentRepository を作成します。
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ClassIDsForTeacher は教師に割り当てられたクラスの ID を返します。
func (r *AssignmentRepository) ClassIDsForTeacher(ctx context.Context, teacherID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT class_id FROM teacher_class_assignments
        WHERE teacher_id = $1
        ORDER BY class_id
    `, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// Exists は教師がクラスに割り当てられているかを返します。
func (r *AssignmentRepository) Exists(ctx context.Context, teacherID, classID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM teacher_class_assignments
            WHERE teacher_id = $1 AND class_id = $2
        )
    `, teacherID, classID).Scan(&exists)
	return exists, err
}
