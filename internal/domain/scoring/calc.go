package scoring

import (
	"fmt"
	"math"
	"time"

	"teacherhr/internal/domain/rubric"
)

const (
	Part2Weight = 0.60
	Part3Weight = 0.20
	CPEWeight   = 0.20
)

type Result struct {
	Part2Score         float64   `json:"part2Score"`
	Part3Score         float64   `json:"part3Score"`
	CPEScore           float64   `json:"cpeScore"`
	Part2Contribution  float64   `json:"part2Contribution"`
	Part3Contribution  float64   `json:"part3Contribution"`
	CPEContribution    float64   `json:"cpeContribution"`
	FinalWeightedScore float64   `json:"finalWeightedScore"`
	CalculatedAt       time.Time `json:"calculatedAt"`
}

// RubricViolation reports a sub-score outside [0, Max]. Scores are never clamped.
type RubricViolation struct {
	Field string `json:"field"`
	Value int    `json:"value"`
	Max   int    `json:"max"`
}

func (e *RubricViolation) Error() string {
	if e.Value < 0 {
		return fmt.Sprintf("score for %s (%d) is below zero", e.Field, e.Value)
	}
	return fmt.Sprintf("score for %s (%d) exceeds maximum of %d", e.Field, e.Value, e.Max)
}

// Calculate computes the 60/20/20 weighted score. Every sub-score is checked
// against the rubric before any arithmetic; unset scores count as zero and an
// unset teaching load scores the lowest step.
func Calculate(scores rubric.Scores, r rubric.Rubric, cpeTotal float64, now time.Time) (Result, error) {
	if err := checkBounds(scores, r); err != nil {
		return Result{}, err
	}

	part2Raw := sum(scores, r.Part2Fields()) + r.TeachingLoad.Points(scores.TeachingLoad)
	part2 := round2(normalize(part2Raw, r.Part2Max()))
	part3 := round2(normalize(sum(scores, r.Part3Fields()), r.Part3Max()))
	cpe := round2(CPEScore(cpeTotal, r.CPE))

	res := Result{
		Part2Score:        part2,
		Part3Score:        part3,
		CPEScore:          cpe,
		Part2Contribution: round2(part2 * Part2Weight),
		Part3Contribution: round2(part3 * Part3Weight),
		CPEContribution:   round2(cpe * CPEWeight),
		CalculatedAt:      now,
	}
	res.FinalWeightedScore = round2(part2*Part2Weight + part3*Part3Weight + cpe*CPEWeight)
	return res, nil
}

// CPEScore scales approved points against the minimum, capped at the policy maximum.
func CPEScore(totalPoints float64, policy rubric.CPEPolicy) float64 {
	if policy.MinimumPoints <= 0 {
		return 0
	}
	return math.Min(totalPoints/policy.MinimumPoints*100, policy.MaximumScore)
}

func checkBounds(scores rubric.Scores, r rubric.Rubric) error {
	for _, part := range []map[string]int{r.Part2, r.Part3} {
		for _, field := range rubric.SortedFields(part) {
			value := scores.Values[field]
			if value == nil {
				continue
			}
			if *value < 0 || *value > part[field] {
				return &RubricViolation{Field: field, Value: *value, Max: part[field]}
			}
		}
	}
	return nil
}

func sum(scores rubric.Scores, fields []string) int {
	total := 0
	for _, field := range fields {
		if v := scores.Values[field]; v != nil {
			total += *v
		}
	}
	return total
}

func normalize(raw, max int) float64 {
	if max <= 0 {
		return 0
	}
	return float64(raw) / float64(max) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
