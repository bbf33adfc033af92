package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-writer/internal/models"
	"campaign-writer/pkg/registry"
)

func TestParse(t *testing.T) {
	schema := registry.DefaultOutputSchema()

	tests := []struct {
		name           string
		text           string
		kind           models.TaskKind
		wantTexts      []string
		wantStructured bool
	}{
		{
			name:           "fenced json",
			text:           "```json\n{\"variants\":[{\"text\":\"Hello\"}],\"confidence\":0.5}\n```",
			kind:           models.TaskSubjectLine,
			wantTexts:      []string{"Hello"},
			wantStructured: true,
		},
		{
			name:      "json failing schema falls back to text",
			text:      `{"variants":"nope"}`,
			kind:      models.TaskBodyCopy,
			wantTexts: []string{`{"variants":"nope"}`},
		},
		{
			name:      "separator blocks",
			text:      "First block\nline two\n---\nSecond block",
			kind:      models.TaskBodyCopy,
			wantTexts: []string{"First block\nline two", "Second block"},
		},
		{
			name:      "numbered subject lines",
			text:      "1. Spring is here\n2) \"Save 20% today\"\n\n- 3.5x more savings",
			kind:      models.TaskSubjectLine,
			wantTexts: []string{"Spring is here", "Save 20% today", "3.5x more savings"},
		},
		{
			name:      "labelled ctas",
			text:      "CTA 1: Shop now\nCTA 2: Learn more",
			kind:      models.TaskCTA,
			wantTexts: []string{"Shop now", "Learn more"},
		},
		{
			name:      "body copy stays whole",
			text:      "Line one.\nLine two.",
			kind:      models.TaskBodyCopy,
			wantTexts: []string{"Line one.\nLine two."},
		},
		{
			name: "empty",
			text: "   ",
			kind: models.TaskCTA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text, tt.kind, schema)
			assert.Equal(t, tt.wantStructured, got.Structured)
			var texts []string
			for _, v := range got.Variants {
				texts = append(texts, v.Text)
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestParse_FormatDetection(t *testing.T) {
	got := Parse("<p>Hello <strong>there</strong></p>", models.TaskBodyCopy, nil)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, models.FormatHTML, got.Variants[0].Format)

	got = Parse("<b>hi</b>", models.TaskSubjectLine, nil)
	assert.Equal(t, models.FormatText, got.Variants[0].Format)
}

func TestParse_Confidence(t *testing.T) {
	got := Parse(`{"variants":[{"text":"a"}],"confidence":0.33}`, models.TaskCTA, registry.DefaultOutputSchema())
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.33, *got.Confidence)

	got = Parse(`{"variants":[{"text":"a"}],"confidence":3}`, models.TaskCTA, registry.DefaultOutputSchema())
	assert.False(t, got.Structured)
}
