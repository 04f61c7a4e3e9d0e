package model

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Diff returns the sorted top-level JSON field names whose values differ
// between before and after. Fields tagged `json:"-"` never appear, so
// secrets are not named in logs. Values that fail to marshal yield nil.
func Diff(before, after any) []string {
	a, err := toFieldMap(before)
	if err != nil {
		return nil
	}
	b, err := toFieldMap(after)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool, len(a)+len(b))
	var changed []string
	for k, av := range a {
		seen[k] = true
		if bv, ok := b[k]; !ok || !reflect.DeepEqual(av, bv) {
			changed = append(changed, k)
		}
	}
	for k := range b {
		if !seen[k] {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func toFieldMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
