package rubric

import (
	"fmt"
	"strings"
)

const TeachingLoadField = "teaching_load_lessons_per_week"

// Scores is the raw, possibly incomplete, score sheet of an appraisal keyed by
// column name. A nil entry means the score has not been entered yet.
type Scores struct {
	Values       map[string]*int
	TeachingLoad *int
}

// Validate reports every rubric bound the scores break. An empty result means
// the sheet is valid; unset scores are never violations.
func Validate(scores Scores, r Rubric) []string {
	var violations []string
	check := func(fields []string, maxima map[string]int) {
		for _, field := range fields {
			value, ok := scores.Values[field]
			if !ok || value == nil {
				continue
			}
			max := maxima[field]
			switch {
			case *value < 0:
				violations = append(violations, fmt.Sprintf("%s must not be negative (got %d)", field, *value))
			case *value > max:
				violations = append(violations, fmt.Sprintf("%s exceeds maximum of %d (got %d)", field, max, *value))
			}
		}
	}
	check(r.Part2Fields(), r.Part2)
	check(r.Part3Fields(), r.Part3)

	if load := scores.TeachingLoad; load != nil {
		switch {
		case *load < 0:
			violations = append(violations, fmt.Sprintf("%s must not be negative (got %d)", TeachingLoadField, *load))
		case *load > r.TeachingLoad.MaxLessons:
			violations = append(violations, fmt.Sprintf("%s exceeds ceiling of %d (got %d)", TeachingLoadField, r.TeachingLoad.MaxLessons, *load))
		}
	}
	return violations
}

// Check validates the rubric document itself before it is stored.
func (r Rubric) Check() error {
	var problems []string
	if len(r.Part2) == 0 {
		problems = append(problems, "part_2 must define at least one field")
	}
	if len(r.Part3) == 0 {
		problems = append(problems, "part_3 must define at least one field")
	}
	for _, part := range []map[string]int{r.Part2, r.Part3} {
		for _, field := range SortedFields(part) {
			if strings.TrimSpace(field) == "" {
				problems = append(problems, "field names must not be blank")
			}
			if part[field] <= 0 {
				problems = append(problems, fmt.Sprintf("%s maximum must be positive", field))
			}
		}
	}
	if len(r.TeachingLoad.Steps) == 0 {
		problems = append(problems, "teaching_load must define at least one step")
	}
	for i := 1; i < len(r.TeachingLoad.Steps); i++ {
		if r.TeachingLoad.Steps[i].MinLessons >= r.TeachingLoad.Steps[i-1].MinLessons {
			problems = append(problems, "teaching_load steps must be ordered by min_lessons descending")
			break
		}
	}
	if r.TeachingLoad.MaxLessons <= 0 {
		problems = append(problems, "teaching_load max_lessons must be positive")
	}
	if r.CPE.MinimumPoints <= 0 {
		problems = append(problems, "cpe minimum_points must be positive")
	}
	if r.CPE.MaximumScore <= 0 {
		problems = append(problems, "cpe maximum_score must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRubric, strings.Join(problems, "; "))
	}
	return nil
}
