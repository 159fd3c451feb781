package appraisal

import (
	"time"

	"teacherhr/internal/domain/rubric"
)

// ScoreSheet holds the weighted Part 2 and Part 3 sub-scores. JSON names match
// the column names used as rubric keys.
type ScoreSheet struct {
	CurriculumContent      *int `json:"curriculum_content_score"`
	AlignedCurriculum      *int `json:"aligned_curriculum_score"`
	StudentOutcome         *int `json:"student_outcome_score"`
	ClassroomManagement    *int `json:"classroom_management_score"`
	MarkingStudentsWork    *int `json:"marking_students_work_score"`
	CocurricularActivities *int `json:"cocurricular_activities_score"`
	DutiesOtherTasks       *int `json:"duties_other_tasks_score"`
	EventManagement        *int `json:"event_management_score"`
	OtherResponsibilities  *int `json:"other_responsibilities_score"`
	Competition            *int `json:"competition_score"`
	CommunityQuantity      *int `json:"community_quantity_score"`
	CommunityQuality       *int `json:"community_quality_score"`
}

// Values keys the sheet by column name.
func (s ScoreSheet) Values() map[string]*int {
	return map[string]*int{
		"curriculum_content_score":      s.CurriculumContent,
		"aligned_curriculum_score":      s.AlignedCurriculum,
		"student_outcome_score":         s.StudentOutcome,
		"classroom_management_score":    s.ClassroomManagement,
		"marking_students_work_score":   s.MarkingStudentsWork,
		"cocurricular_activities_score": s.CocurricularActivities,
		"duties_other_tasks_score":      s.DutiesOtherTasks,
		"event_management_score":        s.EventManagement,
		"other_responsibilities_score":  s.OtherResponsibilities,
		"competition_score":             s.Competition,
		"community_quantity_score":      s.CommunityQuantity,
		"community_quality_score":       s.CommunityQuality,
	}
}

// Personality scores are advisory and do not feed the weighted score.
type Personality struct {
	ManagementSkills        *int `json:"management_skills_score"`
	Resilience              *int `json:"resilience_score"`
	Motivation              *int `json:"motivation_score"`
	Compassion              *int `json:"compassion_score"`
	NetworkingCommunication *int `json:"networking_communication_score"`
	CoreValues              *int `json:"core_values_score"`
	Attendance              *int `json:"attendance_score"`
}

func (p Personality) Values() map[string]*int {
	return map[string]*int{
		"management_skills_score":        p.ManagementSkills,
		"resilience_score":               p.Resilience,
		"motivation_score":               p.Motivation,
		"compassion_score":               p.Compassion,
		"networking_communication_score": p.NetworkingCommunication,
		"core_values_score":              p.CoreValues,
		"attendance_score":               p.Attendance,
	}
}

type SelfAssessment struct {
	Strengths           string `json:"selfStrengths"`
	AreasForImprovement string `json:"selfAreasForImprovement"`
	GoalsNextPeriod     string `json:"selfGoalsNextPeriod"`
}

type Review struct {
	PrincipalOverallComment    string `json:"principalOverallComment"`
	PrincipalCareerAdvancement string `json:"principalCareerAdvancement"`
	HROverallComment           string `json:"hrOverallComment"`
	HRCareerAdvancement        string `json:"hrCareerAdvancement"`
	RevisionReason             string `json:"revisionReason"`
	RevisionComments           string `json:"revisionComments"`
}

// ReviewInput carries the review fields one reviewer is changing. A nil field
// keeps the stored value; an empty string clears it.
type ReviewInput struct {
	PrincipalOverallComment    *string `json:"principalOverallComment"`
	PrincipalCareerAdvancement *string `json:"principalCareerAdvancement"`
	HROverallComment           *string `json:"hrOverallComment"`
	HRCareerAdvancement        *string `json:"hrCareerAdvancement"`
	RevisionReason             *string `json:"revisionReason"`
	RevisionComments           *string `json:"revisionComments"`
}

type Appraisal struct {
	ID            string         `json:"id"`
	TeacherID     string         `json:"teacherId"`
	AppraisalYear int            `json:"appraisalYear"`
	Status        State          `json:"status"`
	TeachingLoad  *int           `json:"teachingLoadLessonsPerWeek"`
	Scores        ScoreSheet     `json:"scores"`
	Personality   Personality    `json:"personality"`
	Self          SelfAssessment `json:"selfAssessment"`
	Review        Review         `json:"review"`

	Part2Score         *float64   `json:"part2Score"`
	Part3Score         *float64   `json:"part3Score"`
	CPEScore           *float64   `json:"cpeScore"`
	FinalWeightedScore *float64   `json:"finalWeightedScore"`
	CalculatedAt       *time.Time `json:"calculatedAt"`

	OriginalFinalScore    *float64   `json:"originalFinalScore,omitempty"`
	OverrideJustification string     `json:"scoreOverrideJustification,omitempty"`
	OverriddenAt          *time.Time `json:"scoreOverriddenAt,omitempty"`
	OverriddenBy          string     `json:"scoreOverriddenBy,omitempty"`

	IsLocked    bool       `json:"isLocked"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// RubricScores is the input of rubric validation and scoring.
func (a Appraisal) RubricScores() rubric.Scores {
	return rubric.Scores{Values: a.Scores.Values(), TeachingLoad: a.TeachingLoad}
}

type Filter struct {
	TeacherID    string
	DepartmentID string
	Year         int
	Status       State
}

type CreateInput struct {
	TeacherID     string `json:"teacherId" validate:"required,uuid"`
	AppraisalYear int    `json:"appraisalYear" validate:"required,min=2000,max=2100"`
}

type SelfInput struct {
	TeachingLoad *int `json:"teachingLoadLessonsPerWeek" validate:"omitempty,min=0"`
	SelfAssessment
}

type ScoresInput struct {
	Scores      ScoreSheet  `json:"scores"`
	Personality Personality `json:"personality"`
}

type OverrideInput struct {
	Score         float64 `json:"score" validate:"min=0,max=100"`
	Justification string  `json:"justification" validate:"required"`
}

type TransitionRequest struct {
	AppraisalID string
	To          State
	ActorID     string
	ActorRole   string
	Comment     string
	Metadata    map[string]any
}

type TransitionResult struct {
	NewState       State     `json:"newState"`
	HistoryEntryID string    `json:"historyEntryId"`
	Appraisal      Appraisal `json:"appraisal"`
}

// StatusChange is the write the store applies after a transition is accepted.
type StatusChange struct {
	From      State
	To        State
	ActorID   string
	ActorRole string
	Comment   string
	Metadata  map[string]any
	Lock      bool
}

type HistoryEntry struct {
	ID             string         `json:"id"`
	AppraisalID    string         `json:"appraisalId"`
	FromStatus     State          `json:"fromStatus"`
	ToStatus       State          `json:"toStatus"`
	ActorID        string         `json:"actorId"`
	ActorRole      string         `json:"actorRole"`
	Comment        string         `json:"comment,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	TransitionedAt time.Time      `json:"transitionedAt"`
}

// TransitionEvent is published after a transition commits.
type TransitionEvent struct {
	AppraisalID    string    `json:"appraisalId"`
	TeacherID      string    `json:"teacherId"`
	AppraisalYear  int       `json:"appraisalYear"`
	From           State     `json:"from"`
	To             State     `json:"to"`
	ActorID        string    `json:"actorId"`
	ActorRole      string    `json:"actorRole"`
	Comment        string    `json:"comment,omitempty"`
	HistoryEntryID string    `json:"historyEntryId"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type Override struct {
	Score         float64
	Justification string
	ActorID       string
	At            time.Time
}
