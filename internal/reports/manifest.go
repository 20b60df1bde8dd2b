package reports

import "time"

const (
	manifestFilename = "manifest.json"
	layoutFilename   = "layout.json"
	outputFilename   = "report.pdf"
)

// Manifest はジョブに必要な情報を保持します。準備時に集めたデータを
// すべて含むため、ワーカーはデータベースへアクセスせずに帳票を描画できます。
type Manifest struct {
	JobID       string       `json:"jobId"`
	RequestedBy int64        `json:"requestedBy"`
	SchoolID    int64        `json:"schoolId"`
	SchoolName  string       `json:"schoolName"`
	Student     StudentInfo  `json:"student"`
	Term        TermInfo     `json:"term"`
	Lines       []ReportLine `json:"lines"`
	Average     float64      `json:"average"`
	Band        string       `json:"band"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// StudentInfo は帳票に記載する生徒情報です。
type StudentInfo struct {
	ID        int64  `json:"id"`
	StudentNo string `json:"studentNo"`
	Name      string `json:"name"`
	ClassName string `json:"className,omitempty"`
}

// TermInfo は帳票に記載する学期情報です。
type TermInfo struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	AcademicYear int    `json:"academicYear"`
}

// ReportLine は帳票の 1 教科分の行です。
type ReportLine struct {
	Subject string  `json:"subject"`
	Score   float64 `json:"score"`
	Band    string  `json:"band"`
}
