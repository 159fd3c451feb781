package cpe

import (
	"math"
	"sort"
	"time"
)

// PointsForDuration derives CPE points from attended hours, one point per hour.
func PointsForDuration(hours float64) float64 {
	return hours
}

// Evaluate computes compliance for a total of approved points. The percentage
// is not capped and may exceed 100.
func Evaluate(teacherID string, year int, totalPoints, required float64) Compliance {
	out := Compliance{
		TeacherID:      teacherID,
		Year:           year,
		IsCompliant:    totalPoints >= required,
		TotalPoints:    totalPoints,
		RequiredPoints: required,
	}
	if !out.IsCompliant {
		out.Deficit = required - totalPoints
	}
	if required > 0 {
		out.CompliancePercentage = round2(totalPoints / required * 100)
	}
	return out
}

func Summarize(approved []Record) Summary {
	out := Summary{Records: approved, RecordCount: len(approved)}
	for _, r := range approved {
		out.TotalPoints += r.CPEPoints
		out.TotalHours += r.DurationHours
	}
	return out
}

func BuildTeacherDetails(teacherID string, year int, records []Record, required float64) TeacherDetails {
	out := TeacherDetails{TeacherID: teacherID, Year: year, MinimumRequired: required}
	for _, r := range records {
		switch r.Status {
		case StatusApproved:
			out.ApprovedRecords = append(out.ApprovedRecords, r)
			out.TotalApproved += r.CPEPoints
		case StatusPending:
			out.PendingRecords = append(out.PendingRecords, r)
			out.TotalPending += r.CPEPoints
		}
	}
	out.PotentialTotal = out.TotalApproved + out.TotalPending
	out.HoursNeeded = math.Max(0, required-out.TotalApproved)
	out.ComplianceStatus = complianceStatus(out.TotalApproved, required)
	return out
}

func BuildBulkReport(year int, teachers []TeacherPoints, required float64, now time.Time) BulkReport {
	report := BulkReport{
		Year:         year,
		Compliant:    []TeacherCompliance{},
		NonCompliant: []TeacherCompliance{},
		GeneratedAt:  now,
	}
	total := 0.0
	for _, tp := range teachers {
		total += tp.Points
		entry := TeacherCompliance{
			TeacherPoints: tp,
			Status:        complianceStatus(tp.Points, required),
			Shortfall:     math.Max(0, required-tp.Points),
		}
		if required > 0 {
			entry.CompletionPercentage = round2(tp.Points / required * 100)
		}
		if entry.Status == ComplianceCompliant {
			report.Compliant = append(report.Compliant, entry)
		} else {
			report.NonCompliant = append(report.NonCompliant, entry)
		}
	}

	count := len(teachers)
	report.Summary = BulkSummary{
		TotalTeachers:     count,
		CompliantCount:    len(report.Compliant),
		NonCompliantCount: len(report.NonCompliant),
		MinimumRequired:   required,
	}
	if count > 0 {
		report.Summary.ComplianceRate = round2(float64(len(report.Compliant)) / float64(count) * 100)
		report.Summary.AverageHours = round2(total / float64(count))
	}
	return report
}

// BuildDepartmentReport groups teachers by department; teachers without a
// department are left out, as are departments without teachers.
func BuildDepartmentReport(year int, teachers []TeacherPoints, required float64, now time.Time) DepartmentReport {
	byID := map[string]*DepartmentCompliance{}
	totals := map[string]float64{}
	for _, tp := range teachers {
		if tp.DepartmentID == "" {
			continue
		}
		dept, ok := byID[tp.DepartmentID]
		if !ok {
			dept = &DepartmentCompliance{DepartmentID: tp.DepartmentID, Name: tp.DepartmentName, Code: tp.DepartmentCode}
			byID[tp.DepartmentID] = dept
		}
		dept.TotalTeachers++
		totals[tp.DepartmentID] += tp.Points
		if tp.Points >= required {
			dept.CompliantCount++
		}
	}

	out := DepartmentReport{Year: year, Departments: []DepartmentCompliance{}, GeneratedAt: now}
	for id, dept := range byID {
		dept.NonCompliantCount = dept.TotalTeachers - dept.CompliantCount
		dept.ComplianceRate = round2(float64(dept.CompliantCount) / float64(dept.TotalTeachers) * 100)
		dept.AverageHours = round2(totals[id] / float64(dept.TotalTeachers))
		out.Departments = append(out.Departments, *dept)
	}
	sort.Slice(out.Departments, func(i, j int) bool {
		return out.Departments[i].Name < out.Departments[j].Name
	})
	return out
}

func complianceStatus(points, required float64) string {
	if points >= required {
		return ComplianceCompliant
	}
	return ComplianceNonCompliant
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
