// Package reports は通知表 PDF の生成ジョブを提供します。
package reports

// Error は利用者に提示できる業務エラーです。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Result は帳票生成の成果を表します。
type Result struct {
	JobID          string `json:"jobId"`
	OutputPath     string `json:"outputPath"`
	OutputFilename string `json:"outputFilename"`
	OutputSize     int64  `json:"outputSize"`
	Meta           *Meta  `json:"meta,omitempty"`
}

// Meta は帳票のメタデータです。ジョブレコードに載せてクライアントへ返します。
type Meta struct {
	StudentName  string  `json:"studentName"`
	StudentNo    string  `json:"studentNo"`
	ClassName    string  `json:"className,omitempty"`
	TermName     string  `json:"termName"`
	SubjectCount int     `json:"subjectCount"`
	Average      float64 `json:"average"`
	Band         string  `json:"band"`
}
