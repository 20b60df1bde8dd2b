// Package grades は成績の参照・更新と成果サマリーを提供します。
package grades

import (
	"context"

	"github.com/yourusername/report-card/internal/authz"
	"github.com/yourusername/report-card/internal/models"
)

// Error は利用者に提示できる業務エラーです。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Repository は成績の検索と更新ができるストアが実装します。
type Repository interface {
	ListForStudent(ctx context.Context, studentID, termID int64) ([]*models.Grade, error)
	Upsert(ctx context.Context, g *models.Grade) error
	ListSubjects(ctx context.Context) ([]*models.Subject, error)
}

// Entry は成績更新リクエストの 1 教科分です。
type Entry struct {
	SubjectID int64   `json:"subjectId" binding:"required"`
	Score     float64 `json:"score"`
}

// Summary は生徒の学期成績のサマリーです。
type Summary struct {
	StudentID int64           `json:"studentId"`
	TermID    int64           `json:"termId"`
	Grades    []*models.Grade `json:"grades"`
	Average   float64         `json:"average"`
	Band      string          `json:"band"`
}

// Service は認可ポリシーを通した成績の参照と更新を提供します。
type Service struct {
	grades Repository
	policy *authz.Policy
}

// NewService は成績サービスを作成します。
func NewService(grades Repository, policy *authz.Policy) *Service {
	return &Service{grades: grades, policy: policy}
}

// ListForStudent は生徒の成績を返します。termID が 0 の場合は全学期分です。
// 生徒が存在しないかアクセスできない場合は found=false を返します。
func (s *Service) ListForStudent(ctx context.Context, user *models.User, studentID, termID int64) ([]*models.Grade, bool, error) {
	ok, err := s.policy.CanAccess(ctx, user, authz.KindStudent, studentID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	list, err := s.grades.ListForStudent(ctx, studentID, termID)
	if err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// Update は生徒の成績をまとめて更新します。既存の (生徒, 学期, 教科) の行は
// スコアを上書きし、無ければ新しい行を作ります。更新者はすべての行に記録されます。
func (s *Service) Update(ctx context.Context, user *models.User, studentID, termID int64, entries []Entry) ([]*models.Grade, bool, error) {
	ok, err := s.policy.CanAccess(ctx, user, authz.KindStudent, studentID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if len(entries) == 0 {
		return nil, true, &Error{Code: "INVALID_REQUEST", Message: "成績を 1 件以上指定してください。"}
	}
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if e.Score < 0 || e.Score > 100 {
			return nil, true, &Error{Code: "INVALID_SCORE", Message: "スコアは 0 から 100 の範囲で指定してください。"}
		}
		if _, dup := seen[e.SubjectID]; dup {
			return nil, true, &Error{Code: "DUPLICATE_SUBJECT", Message: "同じ教科が複数回指定されています。"}
		}
		seen[e.SubjectID] = struct{}{}
	}

	for _, e := range entries {
		g := &models.Grade{
			StudentID:    studentID,
			TermID:       termID,
			SubjectID:    e.SubjectID,
			Score:        e.Score,
			ModifiedByID: user.ID,
		}
		if err := s.grades.Upsert(ctx, g); err != nil {
			return nil, true, err
		}
	}

	list, err := s.grades.ListForStudent(ctx, studentID, termID)
	if err != nil {
		return nil, true, err
	}
	return list, true, nil
}

// Summarize は生徒の学期成績と平均・評価区分を返します。
// 成績が 1 件も無い場合も found=true で空のサマリーを返します。
func (s *Service) Summarize(ctx context.Context, user *models.User, studentID, termID int64) (*Summary, bool, error) {
	list, found, err := s.ListForStudent(ctx, user, studentID, termID)
	if err != nil || !found {
		return nil, found, err
	}

	summary := &Summary{
		StudentID: studentID,
		TermID:    termID,
		Grades:    list,
	}
	if len(list) > 0 {
		var total float64
		for _, g := range list {
			total += g.Score
		}
		summary.Average = total / float64(len(list))
		summary.Band = PerformanceBand(summary.Average)
	}
	return summary, true, nil
}

// ListSubjects は登録済みの教科の一覧を返します。
func (s *Service) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	return s.grades.ListSubjects(ctx)
}

// PerformanceBand はスコアを評価区分に対応させます。境界値は区分に含まれます。
func PerformanceBand(score float64) string {
	switch {
	case score >= 85:
		return "Outstanding"
	case score >= 70:
		return "Good"
	case score >= 55:
		return "Satisfactory"
	default:
		return "Needs Improvement"
	}
}
