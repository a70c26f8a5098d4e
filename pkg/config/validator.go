package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over the top-level Config fields and
// every registered provider and workflow, wrapping each failure in a
// ValidationError so callers see which component it came from.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	for id, p := range cfg.ProviderRegistry.GetAll() {
		if err := validate.Struct(p); err != nil {
			return NewValidationError("provider", string(id), err)
		}
		if p.Type == "http" && p.APIKeyEnv == "" {
			return NewValidationError("provider", string(id), fmt.Errorf("http provider requires api_key_env"))
		}
	}

	for name, w := range cfg.WorkflowRegistry.GetAll() {
		if err := validate.Struct(w); err != nil {
			return NewValidationError("workflow", name, err)
		}
		for _, phase := range w.Phases {
			if err := validate.Struct(phase); err != nil {
				return NewValidationError("workflow", name, err)
			}
		}
	}

	return nil
}
