// Package achievements は成績の推移から成果サジェストを生成します。
//
// サジェストは教科ごとの改善パターン（有意な改善・着実な進歩・優秀）と
// 教科横断の総合指標（総合的な学力向上・安定した高成績）を、共有の
// カテゴリーマスタと突き合わせて関連度スコア付きで返します。
package achievements

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yourusername/report-card/internal/authz"
	"github.com/yourusername/report-card/internal/models"
)

const (
	significantImprovementPercent = 20.0
	steadyProgressPercent         = 10.0
	excellenceScore               = 90.0
	overallImprovementPercent     = 15.0
	consistentHighAverage         = 85.0
)

// StudentStore は生徒の検索ができるストアが実装します。
type StudentStore interface {
	Get(ctx context.Context, id int64) (*models.Student, error)
}

// TermStore は学期の検索ができるストアが実装します。
type TermStore interface {
	Get(ctx context.Context, id int64) (*models.Term, error)
}

// GradeStore は成績と教科の検索ができるストアが実装します。
type GradeStore interface {
	ListForStudent(ctx context.Context, studentID, termID int64) ([]*models.Grade, error)
	HistoryForSubject(ctx context.Context, studentID, subjectID int64) ([]*models.Grade, error)
	ListSubjects(ctx context.Context) ([]*models.Subject, error)
}

// CategoryStore は成果カテゴリーの検索ができるストアが実装します。
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]*models.AchievementCategory, error)
}

// Suggestion は 1 件のサジェストです。関連度は 0.0〜1.0 で、データの
// 期間が長いほど信頼度として高く評価されます。
type Suggestion struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	CategoryName   string         `json:"categoryName"`
	RelevanceScore float64        `json:"relevanceScore"`
	Explanation    string         `json:"explanation"`
	SupportingData map[string]any `json:"supportingData"`
}

// Result はある生徒・学期のサジェスト一覧です。
type Result struct {
	StudentID        int64         `json:"studentId"`
	TermID           int64         `json:"termId"`
	StudentName      string        `json:"studentName"`
	TermName         string        `json:"termName"`
	Suggestions      []*Suggestion `json:"suggestions"`
	TotalSuggestions int           `json:"totalSuggestions"`
	AverageRelevance float64       `json:"averageRelevance"`
}

// improvement は 1 教科の改善の統計です。
type improvement struct {
	firstScore  float64
	latestScore float64
	percent     float64
	totalTerms  int
}

// Service は認可ポリシーを通した成果サジェストの生成を提供します。
type Service struct {
	students   StudentStore
	terms      TermStore
	grades     GradeStore
	categories CategoryStore
	policy     *authz.Policy
}

// NewService は成果サジェストサービスを作成します。
func NewService(students StudentStore, terms TermStore, grades GradeStore, categories CategoryStore, policy *authz.Policy) *Service {
	return &Service{
		students:   students,
		terms:      terms,
		grades:     grades,
		categories: categories,
		policy:     policy,
	}
}

// Suggest は生徒の学期に対するサジェストを生成します。
// 生徒か学期が存在しないかアクセスできない場合は found=false を返します。
// 条件を満たすカテゴリーが無い場合も found=true で空の一覧を返します。
func (s *Service) Suggest(ctx context.Context, user *models.User, studentID, termID int64) (*Result, bool, error) {
	ok, err := s.policy.CanAccess(ctx, user, authz.KindStudent, studentID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	if student == nil {
		return nil, false, nil
	}

	term, err := s.terms.Get(ctx, termID)
	if err != nil {
		return nil, false, err
	}
	if term == nil || term.SchoolID != user.SchoolID {
		return nil, false, nil
	}

	subjects, err := s.grades.ListSubjects(ctx)
	if err != nil {
		return nil, false, err
	}
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, false, err
	}

	currentScores := make(map[int64]float64)
	currentGrades, err := s.grades.ListForStudent(ctx, studentID, termID)
	if err != nil {
		return nil, false, err
	}
	for _, g := range currentGrades {
		currentScores[g.SubjectID] = g.Score
	}

	var suggestions []*Suggestion
	var improvementPercents []float64

	// 教科ごとの改善パターンをカテゴリーと突き合わせる
	for _, subject := range subjects {
		imp, err := s.improvementFor(ctx, studentID, subject.ID)
		if err != nil {
			return nil, false, err
		}
		if imp != nil {
			improvementPercents = append(improvementPercents, imp.percent)
		}

		score, hasScore := currentScores[subject.ID]
		for _, category := range categories {
			if match := matchSubjectCategory(subject, category, imp, score, hasScore); match != nil {
				suggestions = append(suggestions, match)
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].RelevanceScore > suggestions[j].RelevanceScore
	})

	suggestions = append(suggestions, overallSuggestions(categories, improvementPercents, currentScores)...)

	result := &Result{
		StudentID:   studentID,
		TermID:      termID,
		StudentName: student.FullName(),
		TermName:    term.Name,
		Suggestions: suggestions,
	}
	if result.Suggestions == nil {
		result.Suggestions = []*Suggestion{}
	}
	result.TotalSuggestions = len(result.Suggestions)
	if len(result.Suggestions) > 0 {
		var total float64
		for _, sg := range result.Suggestions {
			total += sg.RelevanceScore
		}
		result.AverageRelevance = total / float64(len(result.Suggestions))
	}
	return result, true, nil
}

// improvementFor は教科の成績推移から改善の統計を計算します。
// 2 学期分のデータが無い場合は nil を返します。
func (s *Service) improvementFor(ctx context.Context, studentID, subjectID int64) (*improvement, error) {
	history, err := s.grades.HistoryForSubject(ctx, studentID, subjectID)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, nil
	}

	first := history[0]
	latest := history[len(history)-1]
	if first.Score == 0 {
		return nil, nil
	}
	return &improvement{
		firstScore:  first.Score,
		latestScore: latest.Score,
		percent:     (latest.Score - first.Score) / first.Score * 100,
		totalTerms:  len(history),
	}, nil
}

// matchSubjectCategory は教科の実績がカテゴリーの条件を満たすか判定します。
// カテゴリー名に教科名が含まれないものは対象外です。
func matchSubjectCategory(subject *models.Subject, category *models.AchievementCategory, imp *improvement, currentScore float64, hasScore bool) *Suggestion {
	categoryName := strings.ToLower(category.Name)
	if !strings.Contains(categoryName, strings.ToLower(subject.Name)) {
		return nil
	}

	if category.MinImprovementPercent != nil && imp != nil {
		switch {
		case strings.Contains(categoryName, "significant improvement") && imp.percent >= significantImprovementPercent:
			return &Suggestion{
				Title:          category.Name,
				Description:    category.Description,
				CategoryName:   category.Name,
				RelevanceScore: improvementRelevance(imp.percent, significantImprovementPercent, imp.totalTerms),
				Explanation: fmt.Sprintf("Improved %.1f%% in %s from %.0f to %.0f",
					imp.percent, subject.Name, imp.firstScore, imp.latestScore),
				SupportingData: map[string]any{
					"improvementPercentage": imp.percent,
					"scoreChange":           fmt.Sprintf("%.0f → %.0f", imp.firstScore, imp.latestScore),
					"termsAnalyzed":         imp.totalTerms,
				},
			}
		case strings.Contains(categoryName, "steady progress") &&
			imp.percent >= steadyProgressPercent && imp.percent < significantImprovementPercent:
			return &Suggestion{
				Title:          category.Name,
				Description:    category.Description,
				CategoryName:   category.Name,
				RelevanceScore: improvementRelevance(imp.percent, steadyProgressPercent, imp.totalTerms),
				Explanation: fmt.Sprintf("Showed steady progress with %.1f%% improvement in %s",
					imp.percent, subject.Name),
				SupportingData: map[string]any{
					"improvementPercentage": imp.percent,
					"scoreChange":           fmt.Sprintf("%.0f → %.0f", imp.firstScore, imp.latestScore),
					"termsAnalyzed":         imp.totalTerms,
				},
			}
		}
	}

	if category.MinScore != nil && hasScore &&
		strings.Contains(categoryName, "excellence") && currentScore >= excellenceScore {
		return &Suggestion{
			Title:          category.Name,
			Description:    category.Description,
			CategoryName:   category.Name,
			RelevanceScore: scoreRelevance(currentScore, excellenceScore),
			Explanation:    fmt.Sprintf("Achieved excellence with %.0f%% in %s", currentScore, subject.Name),
			SupportingData: map[string]any{
				"currentScore":        currentScore,
				"excellenceThreshold": excellenceScore,
			},
		}
	}

	return nil
}

// overallSuggestions は教科横断の総合指標をカテゴリーと突き合わせます。
// 総合指標は 2 教科以上のデータがある場合のみ計算します。
func overallSuggestions(categories []*models.AchievementCategory, improvementPercents []float64, currentScores map[int64]float64) []*Suggestion {
	var suggestions []*Suggestion

	if len(improvementPercents) >= 2 {
		var total float64
		for _, p := range improvementPercents {
			total += p
		}
		overall := total / float64(len(improvementPercents))
		if overall >= overallImprovementPercent {
			if category := findCategory(categories, "overall academic improvement"); category != nil && category.MinImprovementPercent != nil {
				suggestions = append(suggestions, &Suggestion{
					Title:          category.Name,
					Description:    category.Description,
					CategoryName:   category.Name,
					RelevanceScore: improvementRelevance(overall, overallImprovementPercent, 3),
					Explanation:    fmt.Sprintf("Achieved %.1f%% overall improvement across all subjects", overall),
					SupportingData: map[string]any{
						"overallImprovementPercentage": overall,
						"subjectsAnalyzed":             len(improvementPercents),
						"individualImprovements":       improvementPercents,
					},
				})
			}
		}
	}

	if len(currentScores) >= 2 {
		var total float64
		scores := make([]float64, 0, len(currentScores))
		for _, score := range currentScores {
			total += score
			scores = append(scores, score)
		}
		sort.Float64s(scores)
		average := total / float64(len(currentScores))
		if average >= consistentHighAverage {
			if category := findCategory(categories, "consistent high performance"); category != nil && category.MinScore != nil {
				suggestions = append(suggestions, &Suggestion{
					Title:          category.Name,
					Description:    category.Description,
					CategoryName:   category.Name,
					RelevanceScore: scoreRelevance(average, consistentHighAverage),
					Explanation: fmt.Sprintf("Maintained consistent high performance with %.1f%% average across all subjects",
						average),
					SupportingData: map[string]any{
						"overallAverage":   average,
						"subjectsAnalyzed": len(currentScores),
						"individualScores": scores,
					},
				})
			}
		}
	}

	return suggestions
}

func findCategory(categories []*models.AchievementCategory, nameFragment string) *models.AchievementCategory {
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), nameFragment) {
			return c
		}
	}
	return nil
}

// improvementRelevance は改善ベースの関連度を返します。しきい値に対する達成度を
// ベースに、分析できた学期数が少ないほど信頼度として割り引きます。
func improvementRelevance(percent, threshold float64, dataPoints int) float64 {
	var base float64
	switch {
	case percent >= threshold:
		base = 0.9
	case percent >= threshold*0.8:
		base = 0.7
	default:
		base = 0.3
	}

	reliability := float64(dataPoints) / 3.0
	if reliability > 1.0 {
		reliability = 1.0
	}
	return base * reliability
}

// scoreRelevance はスコアベースの関連度を返します。
func scoreRelevance(score, threshold float64) float64 {
	if score < threshold {
		return 0.0
	}
	switch {
	case score >= 95.0:
		return 0.95
	case score >= 90.0:
		return 0.9
	default:
		return 0.8
	}
}
