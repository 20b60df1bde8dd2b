package reports

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/report-card/internal/authz"
	"github.com/yourusername/report-card/internal/grades"
	"github.com/yourusername/report-card/internal/models"
	"github.com/yourusername/report-card/internal/storage"
)

// StudentStore は生徒の検索ができるストアが実装します。
type StudentStore interface {
	Get(ctx context.Context, id int64) (*models.Student, error)
}

// TermStore は学期の検索ができるストアが実装します。
type TermStore interface {
	Get(ctx context.Context, id int64) (*models.Term, error)
}

// GradeStore は成績の検索ができるストアが実装します。
type GradeStore interface {
	ListForStudent(ctx context.Context, studentID, termID int64) ([]*models.Grade, error)
}

// ProgressReporter は進捗更新用コールバックです。
type ProgressReporter func(stage string, percent int)

// Service は帳票生成ジョブの準備と実行を提供します。
// 準備はリクエスト処理の中で認可とデータ収集を済ませ、マニフェストとして
// 保存します。実行はワーカーがマニフェストだけを頼りに PDF を描画します。
type Service struct {
	students StudentStore
	terms    TermStore
	grades   GradeStore
	policy   *authz.Policy
	store    *storage.Local
	now      func() time.Time
}

// NewService は帳票サービスを作成します。
func NewService(students StudentStore, terms TermStore, gradeStore GradeStore, policy *authz.Policy, store *storage.Local) *Service {
	return &Service{
		students: students,
		terms:    terms,
		grades:   gradeStore,
		policy:   policy,
		store:    store,
		now:      time.Now,
	}
}

// Prepare は帳票生成に必要なデータを集めてマニフェストを保存します。
// 生徒・学期が存在しないかアクセスできない場合は found=false を返します。
func (s *Service) Prepare(ctx context.Context, user *models.User, studentID, termID int64) (*Manifest, bool, error) {
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

	list, err := s.grades.ListForStudent(ctx, studentID, termID)
	if err != nil {
		return nil, false, err
	}
	if len(list) == 0 {
		return nil, true, &Error{Code: "NO_GRADES", Message: "この学期の成績が登録されていません。"}
	}

	lines := make([]ReportLine, len(list))
	var total float64
	for i, g := range list {
		lines[i] = ReportLine{
			Subject: g.SubjectName,
			Score:   g.Score,
			Band:    grades.PerformanceBand(g.Score),
		}
		total += g.Score
	}
	average := total / float64(len(list))

	manifest := &Manifest{
		JobID:       uuid.NewString(),
		RequestedBy: user.ID,
		SchoolID:    user.SchoolID,
		SchoolName:  user.SchoolName,
		Student: StudentInfo{
			ID:        student.ID,
			StudentNo: student.StudentNo,
			Name:      student.FullName(),
			ClassName: student.ClassName,
		},
		Term: TermInfo{
			ID:           term.ID,
			Name:         term.Name,
			AcademicYear: term.AcademicYear,
		},
		Lines:     lines,
		Average:   average,
		Band:      grades.PerformanceBand(average),
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.WriteJSON(manifest.JobID, manifestFilename, manifest); err != nil {
		return nil, true, fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifest, true, nil
}

// RunJob はジョブ ID に対応する帳票を描画して成果物を保存します。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	reportProgress(reporter, "load", 10)

	var manifest Manifest
	if err := s.store.ReadJSON(jobID, manifestFilename, &manifest); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	reportProgress(reporter, "render", 40)
	outPath, err := s.renderPDF(jobID, &manifest)
	if err != nil {
		_ = s.store.Remove(jobID)
		return nil, err
	}

	reportProgress(reporter, "write", 90)
	info, err := os.Stat(outPath)
	if err != nil {
		_ = s.store.Remove(jobID)
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}

	return &Result{
		JobID:          jobID,
		OutputPath:     outPath,
		OutputFilename: downloadFilename(&manifest),
		OutputSize:     info.Size(),
		Meta: &Meta{
			StudentName:  manifest.Student.Name,
			StudentNo:    manifest.Student.StudentNo,
			ClassName:    manifest.Student.ClassName,
			TermName:     manifest.Term.Name,
			SubjectCount: len(manifest.Lines),
			Average:      manifest.Average,
			Band:         manifest.Band,
		},
	}, nil
}

// OpenResultFile は完了済みジョブの成果物を開きます。
func (s *Service) OpenResultFile(jobID string) (*Result, *os.File, error) {
	var manifest Manifest
	if err := s.store.ReadJSON(jobID, manifestFilename, &manifest); err != nil {
		return nil, nil, err
	}

	file, err := s.store.Open(jobID, outputFilename)
	if err != nil {
		return nil, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	result := &Result{
		JobID:          jobID,
		OutputFilename: downloadFilename(&manifest),
		OutputSize:     info.Size(),
	}
	result.OutputPath, _ = s.store.Path(jobID, outputFilename)
	return result, file, nil
}

// DiscardJob は準備済みジョブのワークスペースを破棄します。
func (s *Service) DiscardJob(jobID string) error {
	return s.store.Remove(jobID)
}

func downloadFilename(m *Manifest) string {
	return fmt.Sprintf("report_%s_%d_term%d.pdf", m.Student.StudentNo, m.Term.AcademicYear, m.Term.ID)
}

func reportProgress(cb ProgressReporter, stage string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, percent)
}
