package jsonutil

import "encoding/json"

// TrimPriority lists the leaf keys removed first when a structured payload
// must be trimmed to fit a token budget, in the fixed order spec'd for
// prompt serialization: bulky, least-decision-relevant sections go first.
var TrimPriority = []string{
	"option_chain_context",
	"fundamental_snapshot",
	"raw_chain",
	"historical_prices",
	"news",
	"analysis_text",
}

// TrimToBudget removes leaf sections from data, in TrimPriority order, until
// the JSON-serialized length is at or below budgetBytes. Every intermediate
// step is marshaled so the result is always valid JSON; if removing every
// prioritized leaf still exceeds the budget, TrimToBudget keeps trimming
// remaining top-level keys, largest serialized value first, until it fits
// or only a minimal {} skeleton remains.
func TrimToBudget(data map[string]any, budgetBytes int) (map[string]any, error) {
	trimmed := deepCopyMap(data)

	fits := func(m map[string]any) (bool, error) {
		b, err := json.Marshal(m)
		if err != nil {
			return false, err
		}
		return len(b) <= budgetBytes, nil
	}

	ok, err := fits(trimmed)
	if err != nil {
		return nil, err
	}
	if ok {
		return trimmed, nil
	}

	for _, key := range TrimPriority {
		if _, present := trimmed[key]; !present {
			continue
		}
		delete(trimmed, key)
		ok, err := fits(trimmed)
		if err != nil {
			return nil, err
		}
		if ok {
			return trimmed, nil
		}
	}

	// Still over budget: drop remaining keys, largest-serialized-value
	// first, until it fits or nothing is left.
	for len(trimmed) > 0 {
		key := largestKey(trimmed)
		delete(trimmed, key)
		ok, err := fits(trimmed)
		if err != nil {
			return nil, err
		}
		if ok {
			return trimmed, nil
		}
	}

	return map[string]any{}, nil
}

func largestKey(m map[string]any) string {
	var best string
	bestSize := -1
	for k, v := range m {
		b, err := json.Marshal(v)
		size := 0
		if err == nil {
			size = len(b)
		}
		if size > bestSize || (size == bestSize && k < best) {
			best = k
			bestSize = size
		}
	}
	return best
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
