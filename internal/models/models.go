// Package models はデータベースに永続化されるドメインモデルを定義します。
package models

import "time"

// Role はユーザーの役割を表します。
type Role string

const (
	// RoleFormTeacher は担任教師です。割り当てられたクラスの生徒のみ参照できます。
	RoleFormTeacher Role = "form_teacher"
	// RoleYearHead は学年主任です。所属校の全生徒を参照できます。
	RoleYearHead Role = "year_head"
	// RoleAdmin は管理者です。所属校の全生徒を参照できます。
	RoleAdmin Role = "admin"
)

// School はマルチテナントの分離単位（学校）です。
type School struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	Address string `json:"address,omitempty"`
}

// User は認証主体（教職員）を表します。
// Role と SchoolID はプロビジョニング時に決まり、以後変更されません。
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	HashedPassword string `json:"-"`
	Role           Role   `json:"role"`
	SchoolID       int64  `json:"schoolId"`
	SchoolName     string `json:"schoolName"`
}

// Session はサーバー側に保存されるセッションレコードです。
// Token が主キーであり、有効性は常に expires_at との比較で判定します。
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CSRFToken string    `json:"-"`
	UserAgent string    `json:"-"`
	IPAddress string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Class は学級（例: Primary 4A）を表します。
type Class struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Level        int    `json:"level"`
	Section      string `json:"section"`
	AcademicYear int    `json:"academicYear"`
	SchoolID     int64  `json:"schoolId"`
}

// Student は生徒を表します。StudentNo は学校内で一意の学籍番号です。
type Student struct {
	ID          int64      `json:"id"`
	StudentNo   string     `json:"studentNo"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	SchoolID    int64      `json:"schoolId"`
	ClassID     int64      `json:"classId"`
	ClassName   string     `json:"className,omitempty"`
}

// FullName は姓名を結合した表示名を返します。
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Term は学期を表します。
type Term struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	AcademicYear int       `json:"academicYear"`
	TermNumber   int       `json:"termNumber"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	SchoolID     int64     `json:"schoolId"`
}

// Subject は教科を表します。
type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Grade は成績です。(student_id, term_id, subject_id) で一意です。
// SubjectName と TermName / TermNumber は結合して取得した場合のみ入ります。
type Grade struct {
	ID           int64   `json:"id"`
	StudentID    int64   `json:"studentId"`
	TermID       int64   `json:"termId"`
	SubjectID    int64   `json:"subjectId"`
	SubjectName  string  `json:"subjectName,omitempty"`
	TermName     string  `json:"termName,omitempty"`
	TermNumber   int     `json:"termNumber,omitempty"`
	Score        float64 `json:"score"`
	ModifiedByID int64   `json:"modifiedById,omitempty"`
}

// AchievementCategory は成果サジェストの候補カテゴリーです。
// 改善率ベースのカテゴリーは MinImprovementPercent を、スコアベースの
// カテゴリーは MinScore を持ちます。どちらも無いカテゴリーは手動付与専用です。
type AchievementCategory struct {
	ID                    int64    `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	MinImprovementPercent *float64 `json:"minImprovementPercent,omitempty"`
	MinScore              *float64 `json:"minScore,omitempty"`
}

// TeacherClassAssignment は担任教師とクラスの多対多の割り当てです。
// (teacher_id, class_id) で一意です。
type TeacherClassAssignment struct {
	ID        int64 `json:"id"`
	TeacherID int64 `json:"teacherId"`
	ClassID   int64 `json:"classId"`
}

// Profile は API が返すユーザーの公開プロフィールです。
type Profile struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	Role       Role   `json:"role"`
	SchoolID   int64  `json:"schoolId"`
	SchoolName string `json:"schoolName"`
}

// PublicProfile は User から公開プロフィールを作成します。
func (u *User) PublicProfile() Profile {
	return Profile{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FullName:   u.FullName,
		Role:       u.Role,
		SchoolID:   u.SchoolID,
		SchoolName: u.SchoolName,
	}
}
