package workflow

import (
	"encoding/json"
	"regexp"
	"strings"

	"campaign-writer/internal/common/validation"
	"campaign-writer/internal/models"
)

// UnreportedConfidence is assumed when neither the output nor the provider
// reports a confidence score.
const UnreportedConfidence = 0.85

// Parsed is the candidate set extracted from a final stage output.
type Parsed struct {
	Variants   []models.Variant
	Confidence *float64
	Structured bool
}

type structuredOutput struct {
	Variants []struct {
		Text   string `json:"text"`
		Format string `json:"format"`
	} `json:"variants"`
	Confidence *float64 `json:"confidence"`
}

var (
	separatorLine = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)
	listMarker    = regexp.MustCompile(`^\s*(?:[-*•]\s+|\d+[.)]\s+|(?i:variant|option|subject(?: line)?|cta)\s*\d*\s*:\s*)`)
	htmlTag       = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// Parse extracts candidates from model output. Structured JSON matching
// schema is preferred; otherwise the text is split on "---" separators and,
// for short-form tasks, on non-empty lines.
func Parse(text string, kind models.TaskKind, schema map[string]interface{}) Parsed {
	if p, ok := parseStructured(text, kind, schema); ok {
		return p
	}
	return Parsed{Variants: splitText(text, kind)}
}

func parseStructured(text string, kind models.TaskKind, schema map[string]interface{}) (Parsed, bool) {
	body := extractJSON(text)
	if body == "" {
		return Parsed{}, false
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Parsed{}, false
	}
	result, err := validation.ValidateDocument(schema, doc)
	if err != nil || !result.Valid {
		return Parsed{}, false
	}

	var out structuredOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return Parsed{}, false
	}

	parsed := Parsed{Confidence: out.Confidence, Structured: true}
	for _, v := range out.Variants {
		t := strings.TrimSpace(v.Text)
		if t == "" {
			continue
		}
		format := models.Format(v.Format)
		if format == "" {
			format = guessFormat(t, kind)
		}
		parsed.Variants = append(parsed.Variants, models.NewVariant(t, format))
	}
	return parsed, true
}

// extractJSON returns the outermost JSON object in text, tolerating code fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func splitText(text string, kind models.TaskKind) []models.Variant {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	switch {
	case separatorLine.MatchString(text):
		chunks = separatorLine.Split(text, -1)
	case kind.ShortForm():
		chunks = strings.Split(text, "\n")
	default:
		chunks = []string{text}
	}

	var out []models.Variant
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if kind.ShortForm() {
			c = strings.Trim(strings.TrimSpace(listMarker.ReplaceAllString(c, "")), `"'`)
		}
		if c == "" || strings.HasPrefix(c, "```") {
			continue
		}
		out = append(out, models.NewVariant(c, guessFormat(c, kind)))
	}
	return out
}

func guessFormat(text string, kind models.TaskKind) models.Format {
	if !kind.ShortForm() && htmlTag.MatchString(text) {
		return models.FormatHTML
	}
	return models.FormatText
}
