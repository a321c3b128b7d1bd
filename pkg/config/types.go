// Package config loads, defaults, and validates the engine configuration
// from a single YAML file. Unknown keys are rejected at startup; validation
// failures are fatal with a non-zero exit, the only errors that are.
package config

import "time"

// RunMode selects the overall budget profile.
type RunMode string

const (
	ModeExpert RunMode = "expert"
	ModeBudget RunMode = "budget"
)

// HypothesisMode controls whether hypotheses are generated and executed.
type HypothesisMode string

const (
	// HypothesesOff skips hypothesis generation entirely; tasks run the
	// direct task-query search only.
	HypothesesOff HypothesisMode = "off"

	// HypothesesPlanning generates and records hypotheses without
	// executing their searches.
	HypothesesPlanning HypothesisMode = "planning"

	// HypothesesExecution generates and executes hypotheses.
	HypothesesExecution HypothesisMode = "execution"
)

// Config is the fully resolved engine configuration.
type Config struct {
	Run          RunConfig                    `yaml:"run"`
	LLM          LLMConfig                    `yaml:"llm"`
	Task         TaskConfig                   `yaml:"task"`
	Hypothesis   HypothesisConfig             `yaml:"hypothesis"`
	Manager      ManagerConfig                `yaml:"manager"`
	FollowUp     FollowUpConfig               `yaml:"follow_up"`
	Integrations map[string]IntegrationConfig `yaml:"integrations" validate:"omitempty,dive"`
	Prompts      PromptsConfig                `yaml:"prompts"`
}

// RunConfig bounds the overall run.
type RunConfig struct {
	Mode              RunMode `yaml:"mode" validate:"omitempty,oneof=expert budget"`
	MaxTasks          int     `yaml:"max_tasks" validate:"min=1,max=200"`
	MaxTimeMinutes    int     `yaml:"max_time_minutes" validate:"min=1"`
	MinResultsPerTask int     `yaml:"min_results_per_task" validate:"min=0"`
	MaxRetriesPerTask int     `yaml:"max_retries_per_task" validate:"min=0,max=10"`
	OutputDir         string  `yaml:"output_dir"`
	CaptureRaw        bool    `yaml:"capture_raw"`
}

// LLMConfig configures the gateway and its model chain.
type LLMConfig struct {
	Model          string   `yaml:"model" validate:"required"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	TimeoutSeconds int      `yaml:"llm_request_timeout_seconds" validate:"min=1"`
	FallbackModels []string `yaml:"fallback_models"`

	// APIKey is resolved from APIKeyEnv at load time, never from YAML.
	APIKey string `yaml:"-"`
}

// TaskConfig bounds a single task.
type TaskConfig struct {
	TimeoutSeconds int `yaml:"task_timeout_seconds" validate:"min=1"`
}

// HypothesisConfig controls the hypothesis loop.
type HypothesisConfig struct {
	Mode                 HypothesisMode `yaml:"mode" validate:"omitempty,oneof=off planning execution"`
	CoverageMode         *bool          `yaml:"coverage_mode"`
	MaxHypothesesPerTask int            `yaml:"max_hypotheses_per_task" validate:"min=1,max=20"`
	MaxSourcesFanout     int            `yaml:"max_sources_fanout" validate:"min=1,max=32"`
}

// ManagerConfig controls LLM-based scheduling behavior.
type ManagerConfig struct {
	Enabled                       *bool `yaml:"enabled"`
	ReprioritizeAfterTask         *bool `yaml:"reprioritize_after_task"`
	SaturationDetection           *bool `yaml:"saturation_detection"`
	SaturationCheckInterval       int   `yaml:"saturation_check_interval" validate:"min=1"`
	SaturationConfidenceThreshold int   `yaml:"saturation_confidence_threshold" validate:"min=0,max=100"`
	AllowSaturationStop           *bool `yaml:"allow_saturation_stop"`
}

// FollowUpConfig bounds follow-up task creation. A nil ceiling means
// unlimited (still subject to the run's max_tasks).
type FollowUpConfig struct {
	MaxFollowUpsPerTask *int `yaml:"max_follow_ups_per_task"`
}

// IntegrationConfig is one data source's settings. The credential is named
// by env var and resolved at load time.
type IntegrationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1,max=120"`

	APIKey string `yaml:"-"`
}

// PromptsConfig points at an optional template override directory.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// LLMTimeout returns the per-call LLM deadline.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// TaskTimeout returns the per-task soft deadline.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Task.TimeoutSeconds) * time.Second
}

// RunTimeout returns the per-run hard deadline.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Run.MaxTimeMinutes) * time.Minute
}

// CoverageMode reports whether the sequential coverage-assessed loop is on.
func (c *Config) CoverageMode() bool {
	return c.Hypothesis.CoverageMode == nil || *c.Hypothesis.CoverageMode
}

// ManagerEnabled reports whether LLM-based prioritization and saturation
// detection are on.
func (c *Config) ManagerEnabled() bool {
	return c.Manager.Enabled == nil || *c.Manager.Enabled
}

// ReprioritizeAfterTask reports whether the queue is re-prioritized after
// each task completion.
func (c *Config) ReprioritizeAfterTask() bool {
	return c.Manager.ReprioritizeAfterTask == nil || *c.Manager.ReprioritizeAfterTask
}

// SaturationDetection reports whether periodic saturation checks run.
func (c *Config) SaturationDetection() bool {
	return c.Manager.SaturationDetection == nil || *c.Manager.SaturationDetection
}

// AllowSaturationStop reports whether a saturation verdict may halt
// scheduling.
func (c *Config) AllowSaturationStop() bool {
	return c.Manager.AllowSaturationStop == nil || *c.Manager.AllowSaturationStop
}
