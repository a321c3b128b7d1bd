package audit

// ActionType identifies the kind of audit event. The set is closed; new
// action types require a contract change in execution_log.jsonl consumers.
type ActionType string

const (
	ActionRunStart                  ActionType = "run_start"
	ActionRunComplete               ActionType = "run_complete"
	ActionDecomposition             ActionType = "decomposition"
	ActionPrioritization            ActionType = "prioritization"
	ActionTaskStart                 ActionType = "task_start"
	ActionTaskComplete              ActionType = "task_complete"
	ActionTaskFailed                ActionType = "task_failed"
	ActionHypothesesGenerated       ActionType = "hypotheses_generated"
	ActionHypothesisQueryGeneration ActionType = "hypothesis_query_generation"
	ActionHypothesisExecuted        ActionType = "hypothesis_executed"
	ActionHypothesisFailed          ActionType = "hypothesis_failed"
	ActionRelevanceScoring          ActionType = "relevance_scoring"
	ActionCoverageAssessment        ActionType = "coverage_assessment"
	ActionSaturationAssessment      ActionType = "saturation_assessment"
	ActionFollowUpCreated           ActionType = "follow_up_created"
	ActionEntityExtraction          ActionType = "entity_extraction"
	ActionLLMCall                   ActionType = "llm_call"
	ActionIntegrationCall           ActionType = "integration_call"
	ActionIntegrationError          ActionType = "integration_error"
	ActionDedup                     ActionType = "dedup"
)
