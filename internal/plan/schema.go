// Package plan loads workflow files and checks them before they run.
package plan

// Workflow is the top-level structure of a workflow file.
type Workflow struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Inputs      map[string]Input `yaml:"inputs,omitempty"`
	// Steps keeps the raw step mappings so they reach the engine in the
	// same shape an MCP client would send.
	Steps []any `yaml:"steps"`
}

// Input defines a workflow-level input parameter.
type Input struct {
	Required    bool   `yaml:"required,omitempty"`
	Description string `yaml:"description,omitempty"`
	Default     string `yaml:"default,omitempty"`
}
