package repository

import (
	"context"
)

// Directory は認可ポリシーが必要とする参照系の問い合わせをまとめた実装です。
// authz.Directory を満たします。
type Directory struct {
	students    *StudentRepository
	classes     *ClassRepository
	assignments *AssignmentRepository
}

// NewDirectory は Directory を作成します。
func NewDirectory(students *StudentRepository, classes *ClassRepository, assignments *AssignmentRepository) *Directory {
	return &Directory{
		students:    students,
		classes:     classes,
		assignments: assignments,
	}
}

// AssignedClassIDs は教師に割り当てられたクラスの ID を返します。
func (d *Directory) AssignedClassIDs(ctx context.Context, teacherID int64) ([]int64, error) {
	return d.assignments.ClassIDsForTeacher(ctx, teacherID)
}

// AssignmentExists は教師とクラスの割り当て行が存在するかを返します。
func (d *Directory) AssignmentExists(ctx context.Context, teacherID, classID int64) (bool, error) {
	return d.assignments.Exists(ctx, teacherID, classID)
}

// StudentTenantClass は生徒の所属校とクラスを返します。
func (d *Directory) StudentTenantClass(ctx context.Context, studentID int64) (int64, int64, bool, error) {
	student, err := d.students.Get(ctx, studentID)
	if err != nil {
		return 0, 0, false, err
	}
	if student == nil {
		return 0, 0, false, nil
	}
	return student.SchoolID, student.ClassID, true, nil
}

// ClassTenant はクラスの所属校を返します。
func (d *Directory) ClassTenant(ctx context.Context, classID int64) (int64, bool, error) {
	class, err := d.classes.Get(ctx, classID)
	if err != nil {
		return 0, false, err
	}
	if class == nil {
		return 0, false, nil
	}
	return class.SchoolID, true, nil
}

// StudentIDsBySchool は学校の全生徒の ID を返します。
func (d *Directory) StudentIDsBySchool(ctx context.Context, schoolID int64) ([]int64, error) {
	return d.students.IDsBySchool(ctx, schoolID)
}

// StudentIDsByClasses は指定クラス群の生徒の ID を返します。
func (d *Directory) StudentIDsByClasses(ctx context.Context, schoolID int64, classIDs []int64) ([]int64, error) {
	return d.students.IDsByClasses(ctx, schoolID, classIDs)
}

// ClassIDsBySchool は学校の全クラスの ID を返します。
func (d *Directory) ClassIDsBySchool(ctx context.Context, schoolID int64) ([]int64, error) {
	return d.classes.IDsBySchool(ctx, schoolID)
}
