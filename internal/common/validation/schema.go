package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// GenerationRequestSchema describes the JSON body accepted by the generate
// endpoints and by the generate-email-content job. Task kinds are not
// enumerated here; unknown kinds are a routing error, not a shape error.
const GenerationRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["task_kind", "objective"],
  "properties": {
    "request_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "task_kind": {"type": "string", "minLength": 1},
    "objective": {"type": "string", "minLength": 1, "maxLength": 4000},
    "audience_context": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "brand_guidelines": {
      "type": "object",
      "properties": {
        "voice": {"type": "string"},
        "company_name": {"type": "string"},
        "industry": {"type": "string"},
        "allowed_words": {"type": "array", "items": {"type": "string"}},
        "forbidden_words": {"type": "array", "items": {"type": "string"}},
        "allowed_domains": {"type": "array", "items": {"type": "string"}},
        "compliance_footer": {"type": "string"}
      }
    },
    "variant_count": {"type": "integer", "minimum": 1, "maximum": 10},
    "complexity": {"type": "string", "enum": ["", "low", "medium", "high"]},
    "requires_brand_guardrails": {"type": "boolean"},
    "requires_human_review": {"type": "boolean"},
    "max_tokens": {"type": "integer", "minimum": 1, "maximum": 4000},
    "temperature": {"type": ["number", "null"]},
    "context_risk": {"type": "string", "enum": ["", "standard", "regulated"]},
    "experiment_phase": {"type": "string", "enum": ["", "exploit", "explore", "ab_test_new"]},
    "strict_urls": {"type": "boolean"},
    "source_content": {"type": "string", "maxLength": 20000},
    "optimization_goal": {"type": "string", "enum": ["", "engagement", "conversion", "clarity", "tone"]}
  }
}`

// OptimizeRequestSchema describes the body of the content optimization endpoint.
const OptimizeRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["content"],
  "properties": {
    "request_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "content": {"type": "string", "minLength": 1, "maxLength": 20000},
    "optimization_goal": {"type": "string", "enum": ["", "engagement", "conversion", "clarity", "tone"]},
    "objective": {"type": "string", "maxLength": 4000},
    "audience_context": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "brand_guidelines": {"type": "object"},
    "variant_count": {"type": "integer", "minimum": 1, "maximum": 10},
    "requires_brand_guardrails": {"type": "boolean"},
    "requires_human_review": {"type": "boolean"},
    "max_tokens": {"type": "integer", "minimum": 1, "maximum": 4000},
    "strict_urls": {"type": "boolean"}
  }
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// compiledSchema compiles a schema source once and reuses it.
type compiledSchema struct {
	source string
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

func (c *compiledSchema) get() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.source))
	})
	return c.schema, c.err
}

func (c *compiledSchema) validate(body []byte) (*ValidationResult, error) {
	schema, err := c.get()
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return convert(result), nil
}

var (
	requestSchema  = &compiledSchema{source: GenerationRequestSchema}
	optimizeSchema = &compiledSchema{source: OptimizeRequestSchema}
)

// ValidateGenerationRequest checks a raw request body against GenerationRequestSchema.
func ValidateGenerationRequest(body []byte) (*ValidationResult, error) {
	return requestSchema.validate(body)
}

// ValidateOptimizeRequest checks a raw body against OptimizeRequestSchema.
func ValidateOptimizeRequest(body []byte) (*ValidationResult, error) {
	return optimizeSchema.validate(body)
}

// ValidateDocument validates an already-decoded document against a schema map,
// as stored in the workflow template registry.
func ValidateDocument(schemaMap map[string]interface{}, doc interface{}) (*ValidationResult, error) {
	if len(schemaMap) == 0 {
		return &ValidationResult{Valid: true}, nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schemaMap), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return convert(result), nil
}

func convert(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
