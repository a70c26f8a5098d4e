package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// yamlDoc is the on-disk shape of memocore.yaml: everything a Config holds
// except the built-in-only bits (registries are built from the Providers/
// Workflows maps after merge).
type yamlDoc struct {
	PrimaryProvider         ProviderID                `yaml:"primary_provider"`
	SecondaryProvider       ProviderID                `yaml:"secondary_provider"`
	ModelMap                ModelMap                  `yaml:"model_map"`
	TokenBudgetBytes        int                       `yaml:"token_budget_bytes"`
	DeepResearchDeadlineS   int                       `yaml:"deep_research_deadline_s"`
	ProgressCallbackEnabled *bool                     `yaml:"progress_callback_enabled"`
	QuotaCosts              QuotaCosts                `yaml:"quota_costs"`
	DailyQuotaLimit         int                       `yaml:"daily_quota_limit"`
	Database                DatabaseConfig            `yaml:"database"`
	Redis                   RedisConfig               `yaml:"redis"`
	Queue                   QueueConfig               `yaml:"queue"`
	Providers               map[ProviderID]ProviderConfig `yaml:"providers"`
	Workflows               map[string]WorkflowConfig     `yaml:"workflows"`
}

// Initialize is the primary entry point: load memocore.yaml from configDir,
// expand env vars, merge over the built-in baseline, build registries, and
// validate. Grounded on the teacher's config.Initialize orchestration
// (load → merge → build registries → validate).
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading configuration")

	doc, err := loadYAMLDoc(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := Defaults()
	override := docToConfig(doc)
	if err := mergeOverride(cfg, override); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}
	cfg.configDir = configDir
	if doc.ProgressCallbackEnabled != nil {
		// mergo's WithOverride treats a false bool as the zero value and
		// would silently keep the default true; apply an explicit false
		// directly instead of relying on the merge for this one field.
		cfg.ProgressCallbackEnabled = *doc.ProgressCallbackEnabled
	}

	providers := mergeProviders(defaultProviders(), doc.Providers)
	workflows := mergeWorkflows(defaultWorkflows(), doc.Workflows)
	cfg.ProviderRegistry = NewProviderRegistry(providers)
	cfg.WorkflowRegistry = NewWorkflowRegistry(workflows)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration loaded", "providers", stats.Providers, "workflows", stats.Workflows)
	return cfg, nil
}

func loadYAMLDoc(configDir string) (*yamlDoc, error) {
	path := filepath.Join(configDir, "memocore.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &doc, nil
}

// docToConfig lifts the YAML-facing yamlDoc into a *Config shaped override,
// so mergeOverride (dario.cat/mergo) can do the one-level-deep merge onto
// the built-in baseline instead of a hand-written field-by-field copy.
func docToConfig(doc *yamlDoc) *Config {
	override := &Config{
		PrimaryProvider:       doc.PrimaryProvider,
		SecondaryProvider:     doc.SecondaryProvider,
		ModelMap:              doc.ModelMap,
		TokenBudgetBytes:      doc.TokenBudgetBytes,
		DeepResearchDeadlineS: doc.DeepResearchDeadlineS,
		QuotaCosts:            doc.QuotaCosts,
		DailyQuotaLimit:       doc.DailyQuotaLimit,
		Database:              doc.Database,
		Redis:                 doc.Redis,
		Queue:                 doc.Queue,
	}
	if doc.ProgressCallbackEnabled != nil {
		override.ProgressCallbackEnabled = *doc.ProgressCallbackEnabled
	}
	return override
}

// LoadConfigFromEnv builds the database half of Config from environment
// variables alone, for deployments that configure the database outside
// memocore.yaml. Grounded on the teacher's database.LoadConfigFromEnv.
func LoadConfigFromEnv() DatabaseConfig {
	cfg := Defaults().Database
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Port)
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.SSLMode = v
	}
	return cfg
}
