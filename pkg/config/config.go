// Package config loads the process-wide Config once at startup from a YAML
// file plus environment variable expansion, merges operator overrides one
// level deep over built-in defaults, and validates the result with
// struct tags before anything else in the process touches it.
package config

// ProviderID identifies a configured LLM vendor backend.
type ProviderID string

const (
	ProviderGemini    ProviderID = "gemini"
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderDummy     ProviderID = "dummy"
)

// ModelMap assigns a model identifier to each report kind the core
// generates, so different call sites can be pinned to different models
// without threading model names through every call.
type ModelMap struct {
	Report                 string `yaml:"report" validate:"required"`
	DailyPick               string `yaml:"daily_pick" validate:"required"`
	DeepResearchSynthesis  string `yaml:"deep_research_synthesis" validate:"required"`
	Planning                string `yaml:"planning" validate:"required"`
	QuestionAnswer          string `yaml:"question_answer" validate:"required"`
}

// QuotaCosts is the per-call-kind credit cost table.
type QuotaCosts struct {
	SingleAgent  int `yaml:"single_agent" validate:"min=0"`
	MultiAgent   int `yaml:"multi_agent" validate:"min=0"`
	DeepResearch int `yaml:"deep_research" validate:"min=0"`
}

// Config is the umbrella object returned by Initialize and threaded through
// the rest of the process. It is read-only after construction; nothing
// mutates it in place once Initialize returns.
type Config struct {
	configDir string

	PrimaryProvider        ProviderID `yaml:"primary_provider" validate:"required,oneof=gemini openai anthropic dummy"`
	SecondaryProvider      ProviderID `yaml:"secondary_provider" validate:"required,oneof=gemini openai anthropic dummy"`
	ModelMap               ModelMap   `yaml:"model_map" validate:"required"`
	TokenBudgetBytes       int        `yaml:"token_budget_bytes" validate:"min=1"`
	DeepResearchDeadlineS  int        `yaml:"deep_research_deadline_s" validate:"min=1"`
	ProgressCallbackEnabled bool      `yaml:"progress_callback_enabled"`
	QuotaCosts             QuotaCosts `yaml:"quota_costs" validate:"required"`
	DailyQuotaLimit        int        `yaml:"daily_quota_limit" validate:"min=1"`

	Database DatabaseConfig `yaml:"database" validate:"required"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue" validate:"required"`

	ProviderRegistry *ProviderRegistry
	WorkflowRegistry *WorkflowRegistry
}

// DatabaseConfig groups Postgres connection settings, grounded on the
// teacher's pkg/database/config.go env-driven layout.
type DatabaseConfig struct {
	Host           string `yaml:"host" validate:"required"`
	Port           int    `yaml:"port" validate:"required"`
	User           string `yaml:"user" validate:"required"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name" validate:"required"`
	SSLMode        string `yaml:"ssl_mode"`
	MaxOpenConns   int    `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns   int    `yaml:"max_idle_conns" validate:"min=0"`
}

// RedisConfig configures the optional quota fast-path cache. Addr empty
// means the fast path is disabled and quotastore falls back to Postgres
// alone.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig sizes the pkg/queue worker pool that drives queued
// deep-research Tasks, grounded on the teacher's pkg/config/queue.go.
type QueueConfig struct {
	WorkerCount        int `yaml:"worker_count" validate:"min=1"`
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" validate:"min=1"`
	PollIntervalMs     int `yaml:"poll_interval_ms" validate:"min=1"`
	PollJitterMs       int `yaml:"poll_jitter_ms" validate:"min=0"`
	TaskTimeoutS       int `yaml:"task_timeout_s" validate:"min=0"`
}

// ConfigStats summarizes what loaded, for a single startup log line.
type ConfigStats struct {
	Providers int
	Workflows int
}

func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Providers: len(c.ProviderRegistry.GetAll()),
		Workflows: len(c.WorkflowRegistry.GetAll()),
	}
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider is a convenience wrapper around ProviderRegistry.Get.
func (c *Config) GetProvider(id ProviderID) (ProviderConfig, error) {
	return c.ProviderRegistry.Get(id)
}

// GetWorkflow is a convenience wrapper around WorkflowRegistry.Get.
func (c *Config) GetWorkflow(name string) (WorkflowConfig, error) {
	return c.WorkflowRegistry.Get(name)
}
