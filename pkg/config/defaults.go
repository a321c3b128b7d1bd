package config

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

// Budget profiles. Expert mode trades time for depth; budget mode caps the
// run at an hour and fewer tasks.
const (
	expertMaxTasks       = 12
	expertMaxTimeMinutes = 360

	budgetMaxTasks       = 6
	budgetMaxTimeMinutes = 60
)

// DefaultConfig returns the built-in configuration. Mode-dependent run
// bounds stay zero here and are resolved after the user YAML is applied, so
// an explicit value always wins over the mode profile.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Mode:              ModeExpert,
			MinResultsPerTask: 3,
			MaxRetriesPerTask: 1,
			OutputDir:         "./runs",
		},
		LLM: LLMConfig{
			Model:          "claude-sonnet-4-5",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			TimeoutSeconds: 180,
		},
		Task: TaskConfig{
			TimeoutSeconds: 1800,
		},
		Hypothesis: HypothesisConfig{
			Mode:                 HypothesesExecution,
			MaxHypothesesPerTask: 5,
			MaxSourcesFanout:     5,
		},
		Manager: ManagerConfig{
			SaturationCheckInterval:       3,
			SaturationConfidenceThreshold: 70,
		},
		FollowUp: FollowUpConfig{
			MaxFollowUpsPerTask: intPtr(2),
		},
	}
}

// builtinIntegrationDefaults seeds per-source settings merged under any
// user-provided entry.
func builtinIntegrationDefaults() map[string]IntegrationConfig {
	return map[string]IntegrationConfig{
		"brave":   {APIKeyEnv: "BRAVE_API_KEY", TimeoutSeconds: 15},
		"usajobs": {APIKeyEnv: "USAJOBS_API_KEY", TimeoutSeconds: 15},
	}
}

// genericIntegrationDefaults covers sources with no built-in profile.
func genericIntegrationDefaults() IntegrationConfig {
	return IntegrationConfig{TimeoutSeconds: 15}
}

// applyModeDefaults fills the mode-dependent run bounds that the user left
// unset.
func applyModeDefaults(cfg *Config) {
	maxTasks, maxMinutes := expertMaxTasks, expertMaxTimeMinutes
	if cfg.Run.Mode == ModeBudget {
		maxTasks, maxMinutes = budgetMaxTasks, budgetMaxTimeMinutes
	}
	if cfg.Run.MaxTasks == 0 {
		cfg.Run.MaxTasks = maxTasks
	}
	if cfg.Run.MaxTimeMinutes == 0 {
		cfg.Run.MaxTimeMinutes = maxMinutes
	}
}
