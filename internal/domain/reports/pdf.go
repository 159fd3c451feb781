package reports

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/scoring"
	"teacherhr/internal/domain/teachers"
)

var sheetRows = []struct {
	label string
	value func(appraisal.ScoreSheet) *int
}{
	{"Curriculum content", func(s appraisal.ScoreSheet) *int { return s.CurriculumContent }},
	{"Aligned curriculum", func(s appraisal.ScoreSheet) *int { return s.AlignedCurriculum }},
	{"Student outcome", func(s appraisal.ScoreSheet) *int { return s.StudentOutcome }},
	{"Classroom management", func(s appraisal.ScoreSheet) *int { return s.ClassroomManagement }},
	{"Marking students' work", func(s appraisal.ScoreSheet) *int { return s.MarkingStudentsWork }},
	{"Co-curricular activities", func(s appraisal.ScoreSheet) *int { return s.CocurricularActivities }},
	{"Duties and other tasks", func(s appraisal.ScoreSheet) *int { return s.DutiesOtherTasks }},
	{"Event management", func(s appraisal.ScoreSheet) *int { return s.EventManagement }},
	{"Other responsibilities", func(s appraisal.ScoreSheet) *int { return s.OtherResponsibilities }},
	{"Competition", func(s appraisal.ScoreSheet) *int { return s.Competition }},
	{"Community (quantity)", func(s appraisal.ScoreSheet) *int { return s.CommunityQuantity }},
	{"Community (quality)", func(s appraisal.ScoreSheet) *int { return s.CommunityQuality }},
}

func renderScoreSheet(a appraisal.Appraisal, teacher teachers.Teacher, history []appraisal.HistoryEntry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Appraisal %d - %s", a.AppraisalYear, teacher.FullName), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Annual Appraisal %d", a.AppraisalYear))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Teacher: %s (%s)", teacher.FullName, teacher.EmployeeID))
	pdf.Ln(6)
	if teacher.DepartmentName != "" {
		pdf.Cell(0, 7, "Department: "+teacher.DepartmentName)
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, "Status: "+string(a.Status))
	pdf.Ln(10)

	heading(pdf, "Performance scores")
	for _, row := range sheetRows {
		pdf.CellFormat(120, 7, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, intOrDash(row.value(a.Scores)), "1", 1, "R", false, 0, "")
	}
	pdf.CellFormat(120, 7, "Teaching load (lessons/week)", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, intOrDash(a.TeachingLoad), "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	heading(pdf, "Weighted result")
	weighted := []struct {
		label  string
		score  *float64
		weight float64
	}{
		{"Part 2: performance", a.Part2Score, scoring.Part2Weight},
		{"Part 3: contribution", a.Part3Score, scoring.Part3Weight},
		{"CPE", a.CPEScore, scoring.CPEWeight},
	}
	for _, w := range weighted {
		pdf.CellFormat(80, 7, w.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, floatOrDash(w.score), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, contribution(w.score, w.weight), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 8, "Final weighted score", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, floatOrDash(a.FinalWeightedScore), "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if a.OriginalFinalScore != nil {
		pdf.MultiCell(0, 6, fmt.Sprintf("Overridden from %.2f: %s", *a.OriginalFinalScore, a.OverrideJustification), "", "L", false)
	}
	pdf.Ln(6)

	if a.Review.PrincipalOverallComment != "" || a.Review.HROverallComment != "" {
		heading(pdf, "Comments")
		if a.Review.PrincipalOverallComment != "" {
			pdf.MultiCell(0, 6, "Principal: "+a.Review.PrincipalOverallComment, "", "L", false)
		}
		if a.Review.HROverallComment != "" {
			pdf.MultiCell(0, 6, "HR: "+a.Review.HROverallComment, "", "L", false)
		}
		pdf.Ln(4)
	}

	if len(history) > 0 {
		heading(pdf, "Workflow history")
		pdf.SetFont("Helvetica", "", 9)
		for _, h := range history {
			line := fmt.Sprintf("%s  %s -> %s  (%s)", h.TransitionedAt.Format("2006-01-02 15:04"), h.FromStatus, h.ToStatus, h.ActorRole)
			pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func heading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func contribution(score *float64, weight float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *score*weight)
}
