package config

// Defaults returns the built-in configuration baseline. User YAML is merged
// on top of this one level deep; anything the user leaves unset keeps the
// value set here.
func Defaults() *Config {
	return &Config{
		PrimaryProvider:   ProviderGemini,
		SecondaryProvider: ProviderOpenAI,
		ModelMap: ModelMap{
			Report:                "gemini-2.5-pro",
			DailyPick:             "gemini-2.5-flash",
			DeepResearchSynthesis: "gemini-2.5-pro",
			Planning:              "gemini-2.5-flash",
			QuestionAnswer:        "gemini-2.5-flash",
		},
		TokenBudgetBytes:        80_000,
		DeepResearchDeadlineS:   1800,
		ProgressCallbackEnabled: true,
		QuotaCosts: QuotaCosts{
			SingleAgent:  1,
			MultiAgent:   5,
			DeepResearch: 5,
		},
		DailyQuotaLimit: 50,
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "memocore",
			Name:         "memocore",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Queue: QueueConfig{
			WorkerCount:        4,
			MaxConcurrentTasks: 4,
			PollIntervalMs:     500,
			PollJitterMs:       150,
			TaskTimeoutS:       1800,
		},
	}
}

// defaultProviders is the built-in provider registry content, merged under
// any user-supplied llm_providers.yaml entries.
func defaultProviders() map[ProviderID]ProviderConfig {
	return map[ProviderID]ProviderConfig{
		ProviderGemini: {
			ID:        ProviderGemini,
			Type:      "http",
			APIKeyEnv: "GEMINI_API_KEY",
			BaseURL:   "https://generativelanguage.googleapis.com",
		},
		ProviderOpenAI: {
			ID:        ProviderOpenAI,
			Type:      "http",
			APIKeyEnv: "OPENAI_API_KEY",
			BaseURL:   "https://api.openai.com",
		},
		ProviderAnthropic: {
			ID:        ProviderAnthropic,
			Type:      "http",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			BaseURL:   "https://api.anthropic.com",
		},
		ProviderDummy: {
			ID:   ProviderDummy,
			Type: "dummy",
		},
	}
}

// defaultWorkflows is the built-in workflow registry content.
func defaultWorkflows() map[string]WorkflowConfig {
	return map[string]WorkflowConfig{
		"options_analysis": {
			Name: "options_analysis",
			Phases: []PhaseConfig{
				{Name: "context", Kind: "parallel", Agents: []string{"options_greeks_analyst", "iv_environment_analyst", "market_context_analyst"}},
				{Name: "risk", Kind: "sequential", Agents: []string{"risk_scenario_analyst"}},
				{Name: "synthesis", Kind: "sequential", Agents: []string{"options_synthesis_agent"}},
			},
		},
	}
}
