package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())

	ids := func(ts []Template) []string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = t.ID
		}
		return out
	}
	assert.Equal(t, []string{"strategy", "draft", "variants"}, ids(reg.StagedSteps))
	assert.Equal(t, []string{"strategist", "writer", "subject_specialist", "brand_manager"}, ids(reg.AgentRoles))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow-registry.json")
	require.NoError(t, Save(path, Default()))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.AgentRoles, 4)
	assert.NotEmpty(t, reg.LastUpdated)
	assert.NotNil(t, reg.OutputSchema)
}

func TestLoadOrDefault(t *testing.T) {
	reg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default().StagedSteps, reg.StagedSteps)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *WorkflowRegistry)
		want   string
	}{
		{"no steps", func(r *WorkflowRegistry) { r.StagedSteps = nil }, "stagedSteps"},
		{"missing id", func(r *WorkflowRegistry) { r.AgentRoles[0].ID = "" }, "id is required"},
		{"duplicate id", func(r *WorkflowRegistry) { r.AgentRoles[1].ID = r.AgentRoles[0].ID }, "duplicate"},
		{"missing instruction", func(r *WorkflowRegistry) { r.StagedSteps[1].Instruction = "" }, "instruction"},
		{"bad class", func(r *WorkflowRegistry) { r.AgentRoles[0].ModelClass = "fast" }, "modelClass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := Default()
			tt.mutate(reg)
			err := reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRegistry_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stagedSteps":[],"agentRoles":[]}`), 0o644))
	_, err := LoadRegistry(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}
