package kpi

import "time"

type Request struct {
	ID                  string     `json:"id"`
	TeacherID           string     `json:"teacherId"`
	Title               string     `json:"kpiTitle"`
	Description         string     `json:"description"`
	Justification       string     `json:"justification"`
	Category            string     `json:"category"`
	TargetValue         string     `json:"targetValue"`
	MeasurementCriteria string     `json:"measurementCriteria"`
	Status              string     `json:"status"`
	ReviewerID          string     `json:"reviewerId,omitempty"`
	ReviewerComments    string     `json:"reviewerComments,omitempty"`
	ReviewedAt          *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

type RequestInput struct {
	Title               string `json:"kpiTitle" validate:"required,max=255"`
	Description         string `json:"description"`
	Justification       string `json:"justification"`
	Category            string `json:"category" validate:"max=100"`
	TargetValue         string `json:"targetValue" validate:"max=255"`
	MeasurementCriteria string `json:"measurementCriteria"`
}

type Filter struct {
	TeacherID string
	Status    string
}
