// pkg/registry/schema.go
package registry

// WorkflowRegistry holds the ordered templates executed by the staged and
// multi-agent strategies.
type WorkflowRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	StagedSteps []Template `json:"stagedSteps"`
	AgentRoles  []Template `json:"agentRoles"`
	// OutputSchema is the JSON schema the final step's output must satisfy
	// to be parsed as structured variants.
	OutputSchema map[string]interface{} `json:"outputSchema"`
}

// Template is one named step or role.
type Template struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Goal        string `json:"goal,omitempty"`
	Instruction string `json:"instruction"`
	// ModelClass pins the step to "creative" or "nuanced"; empty uses the routed model.
	ModelClass string `json:"modelClass,omitempty"`
	// PinOnlyWithGuardrails limits the pin to requests requiring brand guardrails.
	PinOnlyWithGuardrails bool     `json:"pinOnlyWithGuardrails,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
}
