package mapping

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks the structural invariants of a field mapping for the given
// direction. Keys and values must be non-empty after trimming; bidirectional
// mappings must additionally be injective (no repository field may be the
// target of two table fields). All violations are collected before failing.
func Validate(fieldMapping map[string]string, direction Direction) error {
	var violations []string

	keys := make([]string, 0, len(fieldMapping))
	for key := range fieldMapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			violations = append(violations, fmt.Sprintf("table field name %q must be non-empty", key))
		}
		if strings.TrimSpace(fieldMapping[key]) == "" {
			violations = append(violations, fmt.Sprintf("table field %q maps to an empty repository field", key))
		}
	}

	if direction == DirectionBidirectional {
		targets := make(map[string]int, len(fieldMapping))
		for _, value := range fieldMapping {
			targets[strings.TrimSpace(value)]++
		}
		var duplicated []string
		for target, count := range targets {
			if target != "" && count > 1 {
				duplicated = append(duplicated, target)
			}
		}
		if len(duplicated) > 0 {
			sort.Strings(duplicated)
			violations = append(violations, fmt.Sprintf(
				"bidirectional mapping must be one-to-one, duplicated repository fields: %s",
				strings.Join(duplicated, ", ")))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
