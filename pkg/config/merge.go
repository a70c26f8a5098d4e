package config

import "dario.cat/mergo"

// mergeOverride merges a user-supplied override struct onto a base struct
// one level deep: any non-zero field on override replaces the corresponding
// base field, and zero-value override fields leave the base value in place.
// Grounded on the teacher's queue-config merge (mergo.Merge(..., mergo.WithOverride)).
func mergeOverride(base, override *Config) error {
	return mergo.Merge(base, override, mergo.WithOverride)
}

// mergeProviders overlays user-declared providers onto the built-in set,
// keyed by ID. A user entry with the same ID fully replaces the built-in
// one rather than merging field-by-field, since provider configs are small
// and a partial override would usually indicate a typo.
func mergeProviders(builtin, user map[ProviderID]ProviderConfig) map[ProviderID]ProviderConfig {
	merged := make(map[ProviderID]ProviderConfig, len(builtin)+len(user))
	for id, p := range builtin {
		merged[id] = p
	}
	for id, p := range user {
		merged[id] = p
	}
	return merged
}

// mergeWorkflows overlays user-declared workflows onto the built-in set,
// keyed by name, with the same whole-entry-replace semantics as mergeProviders.
func mergeWorkflows(builtin, user map[string]WorkflowConfig) map[string]WorkflowConfig {
	merged := make(map[string]WorkflowConfig, len(builtin)+len(user))
	for name, w := range builtin {
		merged[name] = w
	}
	for name, w := range user {
		merged[name] = w
	}
	return merged
}
