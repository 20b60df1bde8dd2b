package reports

import (
	"fmt"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfcpu の create 機能に渡すページ記述です。テキストボックスを座標指定で
// 並べるだけの単純なレイアウトにしています。
type pageLayout struct {
	Pages map[string]pageSpec `json:"pages"`
}

type pageSpec struct {
	Content pageContent `json:"content"`
}

type pageContent struct {
	Text []textBox `json:"text"`
}

type textBox struct {
	Value    string    `json:"value"`
	Anchor   string    `json:"anchor,omitempty"`
	Position []float64 `json:"position,omitempty"`
	Font     fontSpec  `json:"font"`
}

type fontSpec struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// renderPDF はマニフェストからページ記述を組み立てて PDF を生成します。
func (s *Service) renderPDF(jobID string, manifest *Manifest) (string, error) {
	layout := buildLayout(manifest)
	if err := s.store.WriteJSON(jobID, layoutFilename, layout); err != nil {
		return "", fmt.Errorf("failed to write layout: %w", err)
	}

	layoutPath, err := s.store.Path(jobID, layoutFilename)
	if err != nil {
		return "", err
	}
	outPath, err := s.store.Path(jobID, outputFilename)
	if err != nil {
		return "", err
	}

	if err := pdfapi.CreateFile("", layoutPath, outPath, nil); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return outPath, nil
}

func buildLayout(m *Manifest) *pageLayout {
	const (
		left     = 60.0
		topY     = 780.0
		lineStep = 22.0
	)

	boxes := []textBox{
		{Value: "Report Card", Position: []float64{left, topY}, Font: fontSpec{Name: "Helvetica-Bold", Size: 20}},
		{Value: m.SchoolName, Position: []float64{left, topY - 28}, Font: fontSpec{Name: "Helvetica", Size: 12}},
		{Value: fmt.Sprintf("%s (%s)", m.Student.Name, m.Student.StudentNo), Position: []float64{left, topY - 60}, Font: fontSpec{Name: "Helvetica", Size: 12}},
	}
	if m.Student.ClassName != "" {
		boxes = append(boxes, textBox{
			Value:    "Class: " + m.Student.ClassName,
			Position: []float64{left, topY - 82},
			Font:     fontSpec{Name: "Helvetica", Size: 12},
		})
	}
	boxes = append(boxes, textBox{
		Value:    fmt.Sprintf("%s, %d", m.Term.Name, m.Term.AcademicYear),
		Position: []float64{left, topY - 104},
		Font:     fontSpec{Name: "Helvetica", Size: 12},
	})

	y := topY - 150
	boxes = append(boxes, textBox{
		Value:    "Subject                Score    Band",
		Position: []float64{left, y},
		Font:     fontSpec{Name: "Courier-Bold", Size: 11},
	})
	for _, line := range m.Lines {
		y -= lineStep
		boxes = append(boxes, textBox{
			Value:    fmt.Sprintf("%-22s %6.1f    %s", line.Subject, line.Score, line.Band),
			Position: []float64{left, y},
			Font:     fontSpec{Name: "Courier", Size: 11},
		})
	}

	y -= 2 * lineStep
	boxes = append(boxes, textBox{
		Value:    fmt.Sprintf("Average: %.1f    Overall: %s", m.Average, m.Band),
		Position: []float64{left, y},
		Font:     fontSpec{Name: "Helvetica-Bold", Size: 12},
	})

	return &pageLayout{
		Pages: map[string]pageSpec{
			"1": {Content: pageContent{Text: boxes}},
		},
	}
}
