package rubric

import (
	"sort"
	"time"
)

const DefaultKey = "appraisal_rubric"

// Rubric maps every scorable field to its maximum value.
type Rubric struct {
	Part2        map[string]int `json:"part_2" yaml:"part_2"`
	Part3        map[string]int `json:"part_3" yaml:"part_3"`
	TeachingLoad TeachingLoad   `json:"teaching_load" yaml:"teaching_load"`
	CPE          CPEPolicy      `json:"cpe" yaml:"cpe"`
}

// TeachingLoad converts lessons per week into Part 2 points. Steps are
// ordered by MinLessons descending; the first step whose minimum is met wins.
type TeachingLoad struct {
	MaxLessons int        `json:"max_lessons" yaml:"max_lessons"`
	Steps      []LoadStep `json:"steps" yaml:"steps"`
}

type LoadStep struct {
	MinLessons int `json:"min_lessons" yaml:"min_lessons"`
	Points     int `json:"points" yaml:"points"`
}

type CPEPolicy struct {
	MinimumPoints float64 `json:"minimum_points" yaml:"minimum_points"`
	MaximumScore  float64 `json:"maximum_score" yaml:"maximum_score"`
}

type Version struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Version     int       `json:"version"`
	IsActive    bool      `json:"isActive"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Value       Rubric    `json:"value"`
}

// MaxPoints is the largest value the step function can award.
func (t TeachingLoad) MaxPoints() int {
	max := 0
	for _, step := range t.Steps {
		if step.Points > max {
			max = step.Points
		}
	}
	return max
}

// Points returns the step score for lessons; nil counts as zero lessons.
func (t TeachingLoad) Points(lessons *int) int {
	n := 0
	if lessons != nil {
		n = *lessons
	}
	for _, step := range t.Steps {
		if n >= step.MinLessons {
			return step.Points
		}
	}
	if len(t.Steps) == 0 {
		return 0
	}
	return t.Steps[len(t.Steps)-1].Points
}

// Part2Max is the Part 2 normalization divisor: the sum of the configured
// sub-score maxima plus the top teaching-load step.
func (r Rubric) Part2Max() int {
	return sumValues(r.Part2) + r.TeachingLoad.MaxPoints()
}

func (r Rubric) Part3Max() int {
	return sumValues(r.Part3)
}

func (r Rubric) Part2Fields() []string {
	return SortedFields(r.Part2)
}

func (r Rubric) Part3Fields() []string {
	return SortedFields(r.Part3)
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// SortedFields returns the field names of a rubric part in a stable order.
func SortedFields(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
