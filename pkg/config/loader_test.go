package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sleuth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitializeDefaults(t *testing.T) {
	cfg, err := Initialize("")
	require.NoError(t, err)

	assert.Equal(t, ModeExpert, cfg.Run.Mode)
	assert.Equal(t, 12, cfg.Run.MaxTasks)
	assert.Equal(t, 360, cfg.Run.MaxTimeMinutes)
	assert.Equal(t, 180, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, 1800, cfg.Task.TimeoutSeconds)
	assert.Equal(t, HypothesesExecution, cfg.Hypothesis.Mode)
	assert.Equal(t, 5, cfg.Hypothesis.MaxSourcesFanout)
	assert.True(t, cfg.CoverageMode())
	assert.True(t, cfg.ManagerEnabled())
	assert.True(t, cfg.AllowSaturationStop())
	require.NotNil(t, cfg.FollowUp.MaxFollowUpsPerTask)
	assert.Equal(t, 2, *cfg.FollowUp.MaxFollowUpsPerTask)
}

func TestInitializeBudgetMode(t *testing.T) {
	path := writeConfig(t, "run:\n  mode: budget\n")
	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Run.MaxTasks)
	assert.Equal(t, 60, cfg.Run.MaxTimeMinutes)
}

func TestExplicitValuesBeatModeProfile(t *testing.T) {
	path := writeConfig(t, `
run:
  mode: budget
  max_tasks: 20
  max_time_minutes: 90
`)
	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Run.MaxTasks)
	assert.Equal(t, 90, cfg.Run.MaxTimeMinutes)
}

func TestExplicitFalseOverridesDefaultTrue(t *testing.T) {
	path := writeConfig(t, `
hypothesis:
  coverage_mode: false
manager:
  enabled: false
  allow_saturation_stop: false
`)
	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.False(t, cfg.CoverageMode())
	assert.False(t, cfg.ManagerEnabled())
	assert.False(t, cfg.AllowSaturationStop())
	assert.True(t, cfg.ReprioritizeAfterTask(), "untouched booleans keep their defaults")
}

func TestUnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "run:\n  max_taks: 5\n")
	_, err := Initialize(path)
	assert.ErrorIs(t, err, ErrUnknownKey)

	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestInvalidYAML(t *testing.T) {
	path := writeConfig(t, "run: [unclosed\n")
	_, err := Initialize(path)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestMissingFile(t *testing.T) {
	_, err := Initialize(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestValidationRanges(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero llm timeout", "llm:\n  model: m\n  llm_request_timeout_seconds: 0\n"},
		{"max_tasks over ceiling", "run:\n  max_tasks: 500\n"},
		{"confidence over 100", "manager:\n  saturation_confidence_threshold: 150\n"},
		{"bad hypothesis mode", "hypothesis:\n  mode: sometimes\n"},
		{"negative follow-up ceiling", "follow_up:\n  max_follow_ups_per_task: -1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			_, err := Initialize(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestValidationErrorNamesSection(t *testing.T) {
	path := writeConfig(t, "manager:\n  saturation_confidence_threshold: 150\n")
	_, err := Initialize(path)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "manager", verr.Section)
}

func TestIntegrationDefaultsAndCredentials(t *testing.T) {
	t.Setenv("BRAVE_API_KEY", "bk")
	t.Setenv("CUSTOM_SOURCE_KEY", "ck")

	path := writeConfig(t, `
integrations:
  brave:
    enabled: true
  custom:
    enabled: true
    api_key_env: CUSTOM_SOURCE_KEY
    timeout_seconds: 30
`)
	cfg, err := Initialize(path)
	require.NoError(t, err)

	brave := cfg.Integrations["brave"]
	assert.True(t, brave.Enabled)
	assert.Equal(t, "BRAVE_API_KEY", brave.APIKeyEnv, "built-in source defaults fill in")
	assert.Equal(t, 15, brave.TimeoutSeconds)
	assert.Equal(t, "bk", brave.APIKey)

	custom := cfg.Integrations["custom"]
	assert.Equal(t, 30, custom.TimeoutSeconds)
	assert.Equal(t, "ck", custom.APIKey)
}

func TestMissingCredentialIsNotFatal(t *testing.T) {
	t.Setenv("BRAVE_API_KEY", "")
	path := writeConfig(t, "integrations:\n  brave:\n    enabled: true\n")
	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Integrations["brave"].APIKey)
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Initialize("")
	require.NoError(t, err)
	assert.Equal(t, cfg.RunTimeout().Minutes(), float64(cfg.Run.MaxTimeMinutes))
	assert.Equal(t, cfg.LLMTimeout().Seconds(), float64(cfg.LLM.TimeoutSeconds))
	assert.Equal(t, cfg.TaskTimeout().Seconds(), float64(cfg.Task.TimeoutSeconds))
}
