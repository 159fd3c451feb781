package rubric

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed default_rubric.yaml
var defaultRubricYAML []byte

// Default returns the built-in rubric.
func Default() Rubric {
	r, err := Parse(defaultRubricYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rubric is invalid: %v", err))
	}
	return r
}

// Parse decodes a YAML (or JSON) rubric document and checks it.
func Parse(data []byte) (Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}
	if err := r.Check(); err != nil {
		return Rubric{}, err
	}
	return r, nil
}
