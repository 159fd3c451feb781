package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teacherhr/internal/domain/rubric"
)

func intPtr(v int) *int { return &v }

func maxedScores() rubric.Scores {
	return rubric.Scores{
		Values: map[string]*int{
			"curriculum_content_score":      intPtr(20),
			"aligned_curriculum_score":      intPtr(10),
			"student_outcome_score":         intPtr(20),
			"classroom_management_score":    intPtr(10),
			"marking_students_work_score":   intPtr(10),
			"cocurricular_activities_score": intPtr(15),
			"duties_other_tasks_score":      intPtr(10),
			"event_management_score":        intPtr(10),
			"other_responsibilities_score":  intPtr(10),
			"competition_score":             intPtr(10),
			"community_quantity_score":      intPtr(5),
			"community_quality_score":       intPtr(10),
		},
		TeachingLoad: intPtr(22),
	}
}

func TestCalculatePerfectAppraisal(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	res, err := Calculate(maxedScores(), rubric.Default(), 40, now)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Part2Score)
	assert.Equal(t, 100.0, res.Part3Score)
	assert.Equal(t, 100.0, res.CPEScore)
	assert.Equal(t, 60.0, res.Part2Contribution)
	assert.Equal(t, 20.0, res.Part3Contribution)
	assert.Equal(t, 20.0, res.CPEContribution)
	assert.Equal(t, 100.0, res.FinalWeightedScore)
	assert.Equal(t, now, res.CalculatedAt)
}

func TestCalculateMixedAppraisal(t *testing.T) {
	scores := rubric.Scores{
		Values: map[string]*int{
			"curriculum_content_score":      intPtr(15),
			"aligned_curriculum_score":      intPtr(8),
			"student_outcome_score":         intPtr(14),
			"classroom_management_score":    intPtr(7),
			"marking_students_work_score":   intPtr(6),
			"cocurricular_activities_score": intPtr(10),
			"competition_score":             intPtr(5),
			"community_quantity_score":      nil,
		},
		TeachingLoad: intPtr(12),
	}
	res, err := Calculate(scores, rubric.Default(), 30, time.Now())
	require.NoError(t, err)

	// Part 2: 15+8+14+7+6 + 20 (10-14 lessons) = 70 of 100.
	assert.Equal(t, 70.0, res.Part2Score)
	// Part 3: 15 of 70.
	assert.Equal(t, 21.43, res.Part3Score)
	assert.Equal(t, 75.0, res.CPEScore)
	assert.Equal(t, 42.0, res.Part2Contribution)
	assert.Equal(t, 4.29, res.Part3Contribution)
	assert.Equal(t, 15.0, res.CPEContribution)
	// 70*0.6 + 21.43*0.2 + 75*0.2 = 61.286
	assert.Equal(t, 61.29, res.FinalWeightedScore)
}

func TestCalculateUnsetScoresCountAsZero(t *testing.T) {
	res, err := Calculate(rubric.Scores{}, rubric.Default(), 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Part2Score)
	assert.Equal(t, 0.0, res.Part3Score)
	assert.Equal(t, 0.0, res.CPEScore)
	assert.Equal(t, 6.0, res.FinalWeightedScore)
}

func TestCalculateRejectsOverMaximum(t *testing.T) {
	scores := maxedScores()
	scores.Values["curriculum_content_score"] = intPtr(25)

	res, err := Calculate(scores, rubric.Default(), 40, time.Now())
	var violation *RubricViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, RubricViolation{Field: "curriculum_content_score", Value: 25, Max: 20}, *violation)
	assert.Equal(t, Result{}, res)
	assert.Contains(t, err.Error(), "exceeds maximum of 20")
}

func TestCalculateRejectsNegative(t *testing.T) {
	scores := maxedScores()
	scores.Values["community_quality_score"] = intPtr(-1)

	_, err := Calculate(scores, rubric.Default(), 40, time.Now())
	var violation *RubricViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "community_quality_score", violation.Field)
	assert.Contains(t, err.Error(), "below zero")
}

func TestCalculateIsDeterministic(t *testing.T) {
	now := time.Now()
	scores := maxedScores()
	scores.Values["event_management_score"] = intPtr(3)
	first, err := Calculate(scores, rubric.Default(), 17.5, now)
	require.NoError(t, err)
	second, err := Calculate(scores, rubric.Default(), 17.5, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCPEScoreBoundaries(t *testing.T) {
	policy := rubric.Default().CPE
	assert.Equal(t, 100.0, CPEScore(40, policy))
	assert.Equal(t, 50.0, CPEScore(20, policy))
	assert.Equal(t, 100.0, CPEScore(80, policy))
	assert.Equal(t, 0.0, CPEScore(0, policy))
	assert.Equal(t, 0.0, CPEScore(10, rubric.CPEPolicy{}))
}

func TestPart2DivisorFollowsRubric(t *testing.T) {
	r := rubric.Default()
	r.Part2["curriculum_content_score"] = 40

	scores := maxedScores()
	res, err := Calculate(scores, r, 40, time.Now())
	require.NoError(t, err)
	// 100 raw points out of a reconfigured 120 maximum.
	assert.Equal(t, 83.33, res.Part2Score)
}
