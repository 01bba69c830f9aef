package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
	"github.com/stevehiehn/deskagent/internal/template"
)

// LoadFile reads and parses a workflow YAML file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Load(data)
}

// Load parses workflow YAML bytes.
func Load(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(w.Steps) == 0 {
		return nil, fmt.Errorf("workflow has no steps")
	}
	if w.Name == "" {
		return nil, fmt.Errorf("workflow has no name")
	}
	return &w, nil
}

// BindInputs merges provided values over declared defaults. A required
// input with neither a value nor a default is an error.
func (w *Workflow) BindInputs(provided map[string]string) (map[string]string, error) {
	out := map[string]string{}
	for name, inp := range w.Inputs {
		if inp.Default != "" {
			out[name] = inp.Default
		}
	}
	for name, v := range provided {
		out[name] = v
	}
	for name, inp := range w.Inputs {
		if _, ok := out[name]; inp.Required && !ok {
			return nil, dagerrors.NewValidationError(
				fmt.Sprintf("missing required input %q", name),
				fmt.Sprintf("Provide --input %s=<value>", name))
		}
	}
	return out, nil
}

// ResolvedSteps returns the steps with ${{inputs.*}} and ${{env.*}}
// references substituted. The workflow itself is left unchanged.
func (w *Workflow) ResolvedSteps(provided map[string]string) ([]any, error) {
	inputs, err := w.BindInputs(provided)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(w.Steps))
	for i, s := range w.Steps {
		r, err := template.Expand(s, &template.Context{Inputs: inputs})
		if err != nil {
			return nil, dagerrors.NewStepError(dagerrors.ValidationError, i, err.Error())
		}
		out[i] = r
	}
	return out, nil
}
