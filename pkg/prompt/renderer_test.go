package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererLoadsBuiltins(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	for _, name := range []string{
		TaskDecomposition, TaskPrioritization, HypothesisGeneration,
		HypothesisQueryGeneration, RelevanceEvaluation, CoverageAssessment,
		SaturationDetection, FollowUpGeneration, EntityExtraction, ReportSynthesis,
	} {
		assert.Contains(t, r.Names(), name)
	}
}

func TestRender(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	t.Run("substitutes variables", func(t *testing.T) {
		out, err := r.Render(TaskDecomposition, map[string]any{
			"Question": "Who operates at Fort Meade?",
			"MaxTasks": 5,
		})
		require.NoError(t, err)
		assert.Contains(t, out, "Who operates at Fort Meade?")
		assert.Contains(t, out, "between 3 and 5 tasks")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := r.Render("no_such_template", nil)
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})

	t.Run("missing variable", func(t *testing.T) {
		_, err := r.Render(TaskDecomposition, map[string]any{"Question": "q"})
		assert.ErrorIs(t, err, ErrMissingVariable)
	})
}

func TestRendererOverrides(t *testing.T) {
	dir := t.TempDir()
	override := "OVERRIDDEN: {{.Question}}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "task_decomposition.tmpl"), []byte(override), 0o644))

	r, err := NewRenderer(dir)
	require.NoError(t, err)

	out, err := r.Render(TaskDecomposition, map[string]any{"Question": "q"})
	require.NoError(t, err)
	assert.Equal(t, "OVERRIDDEN: q", out)

	// Non-overridden templates still come from the embedded set.
	out, err = r.Render(EntityExtraction, map[string]any{
		"Question": "q", "TaskQuery": "t", "Results": "r",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "named entities")
}

func TestRendererMissingOverrideDirIsFine(t *testing.T) {
	_, err := NewRenderer(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
}
