// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	ModelClassCreative = "creative"
	ModelClassNuanced  = "nuanced"
)

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*WorkflowRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg WorkflowRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if reg.OutputSchema == nil {
		reg.OutputSchema = DefaultOutputSchema()
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LoadOrDefault returns the built-in registry when path is empty.
func LoadOrDefault(path string) (*WorkflowRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadRegistry(path)
}

// Save writes reg as indented JSON, stamping LastUpdated.
func Save(path string, reg *WorkflowRegistry) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks both template lists.
func (r *WorkflowRegistry) Validate() error {
	if err := validateTemplates("stagedSteps", r.StagedSteps); err != nil {
		return err
	}
	return validateTemplates("agentRoles", r.AgentRoles)
}

func validateTemplates(list string, templates []Template) error {
	if len(templates) == 0 {
		return fmt.Errorf("%s: at least one template is required", list)
	}
	seen := make(map[string]bool, len(templates))
	for i, t := range templates {
		if t.ID == "" {
			return fmt.Errorf("%s[%d]: id is required", list, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%s: duplicate id %q", list, t.ID)
		}
		seen[t.ID] = true
		if t.Instruction == "" {
			return fmt.Errorf("%s[%s]: instruction is required", list, t.ID)
		}
		switch t.ModelClass {
		case "", ModelClassCreative, ModelClassNuanced:
		default:
			return fmt.Errorf("%s[%s]: unknown modelClass %q", list, t.ID, t.ModelClass)
		}
	}
	return nil
}

// DefaultOutputSchema describes {"variants":[{"text","format"}],"confidence"}.
func DefaultOutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"variants"},
		"properties": map[string]interface{}{
			"variants": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"text"},
					"properties": map[string]interface{}{
						"text":   map[string]interface{}{"type": "string"},
						"format": map[string]interface{}{"type": "string", "enum": []interface{}{"html", "text"}},
					},
				},
			},
			"confidence": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		},
	}
}

// Default is the built-in registry: a strategy, draft, variants pipeline and
// a four-role crew.
func Default() *WorkflowRegistry {
	return &WorkflowRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-01-01T00:00:00Z",
		StagedSteps: []Template{
			{
				ID:          "strategy",
				DisplayName: "Campaign Strategy",
				Instruction: "Analyze the campaign requirements and outline a strategy: target audience insights, key messaging framework, content structure and call-to-action approach. Respond in plain prose.",
				Tags:        []string{"planning"},
			},
			{
				ID:          "draft",
				DisplayName: "Content Draft",
				Instruction: "Using the strategy above, write the content draft the task asks for. Keep the brand voice and respect every word restriction.",
				Tags:        []string{"writing"},
			},
			{
				ID:          "variants",
				DisplayName: "Variant Candidates",
				Instruction: "Turn the draft above into the requested number of distinct candidates, varying the approach (question, statement, benefit).",
				Tags:        []string{"variants"},
			},
		},
		AgentRoles: []Template{
			{
				ID:          "strategist",
				DisplayName: "Email Campaign Strategist",
				Goal:        "Analyze audience and create effective campaign strategy",
				Instruction: "Create a campaign strategy covering target audience analysis, key messaging points, tone and style recommendations, and call-to-action strategy.",
			},
			{
				ID:          "writer",
				DisplayName: "Email Content Writer",
				Goal:        "Write compelling email content that drives engagement",
				Instruction: "Based on the strategy, write the content with an engaging opening, a clear value proposition and a strong call-to-action.",
			},
			{
				ID:          "subject_specialist",
				DisplayName: "Subject Line Specialist",
				Goal:        "Create high-performing subject lines that maximize open rates",
				Instruction: "Propose subject lines and preview text that align with the strategy and the written content.",
				ModelClass:  ModelClassCreative,
			},
			{
				ID:                    "brand_manager",
				DisplayName:           "Brand Manager",
				Goal:                  "Ensure content aligns with brand voice and guidelines",
				Instruction:           "Review everything above for brand voice consistency, message alignment and tone. Correct any issue and produce the final candidates.",
				ModelClass:            ModelClassNuanced,
				PinOnlyWithGuardrails: true,
			},
		},
		OutputSchema: DefaultOutputSchema(),
	}
}
