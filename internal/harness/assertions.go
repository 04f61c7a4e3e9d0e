package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError provides detailed information about assertion failures.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Calls    []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("%s assertion failed:\n  expected: %s\n  actual: %s",
		e.Type, e.Expected, e.Actual)

	if len(e.Calls) > 0 {
		msg += "\n  calls: " + strings.Join(e.Calls, ", ")
	}
	return msg
}

// assertCallsContain checks the call was made at least once.
func assertCallsContain(calls []string, assertion Assertion) error {
	for _, c := range calls {
		if c == assertion.Call {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertCallsContain,
		Expected: fmt.Sprintf("call %s", assertion.Call),
		Actual:   "call not found",
		Calls:    calls,
	}
}

// assertCallsOrder checks each call's first occurrence comes after the
// previous one's. Other calls may be interleaved.
func assertCallsOrder(calls []string, assertion Assertion) error {
	// Step 1: Find first position of each call
	positions := make(map[string]int)
	for i, c := range calls {
		if _, ok := positions[c]; !ok {
			positions[c] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all calls found
	for _, c := range assertion.Calls {
		if positions[c] == 0 {
			return &AssertionError{
				Type:     AssertCallsOrder,
				Expected: fmt.Sprintf("all calls present: %v", assertion.Calls),
				Actual:   fmt.Sprintf("missing call: %s", c),
				Calls:    calls,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Calls); i++ {
		prev := assertion.Calls[i-1]
		curr := assertion.Calls[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCallsOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Calls: calls,
			}
		}
	}

	return nil
}

// assertCallCount checks the call was made exactly the specified number of times.
func assertCallCount(calls []string, assertion Assertion) error {
	count := 0
	for _, c := range calls {
		if c == assertion.Call {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls of %s", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d calls", count),
			Calls:    calls,
		}
	}

	return nil
}

func assertFinalStep(result *Result, assertion Assertion) error {
	if result.FinalStep != assertion.Step {
		return &AssertionError{
			Type:     AssertFinalStep,
			Expected: assertion.Step,
			Actual:   result.FinalStep,
		}
	}
	return nil
}

// assertExported checks the last exported account against the expected
// fields using subset semantics. Both sides go through JSON so YAML and
// struct values compare by their encoded form.
func assertExported(result *Result, assertion Assertion) error {
	if len(result.Exported) == 0 {
		return &AssertionError{
			Type:     AssertExported,
			Expected: "an exported account",
			Actual:   "nothing exported",
		}
	}

	actual, err := toJSONMap(result.Exported[len(result.Exported)-1])
	if err != nil {
		return fmt.Errorf("encode exported account: %w", err)
	}
	expected, err := toJSONMap(assertion.Expect)
	if err != nil {
		return fmt.Errorf("encode expected fields: %w", err)
	}

	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertExported,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present", key),
			}
		}
		if !matchValue(actualValue, expected[key]) {
			return &AssertionError{
				Type:     AssertExported,
				Expected: fmt.Sprintf("field %q = %v", key, expected[key]),
				Actual:   fmt.Sprintf("field %q = %v", key, actualValue),
			}
		}
	}
	return nil
}

func assertStoreCleared(result *Result) error {
	if !result.StoreCleared {
		return &AssertionError{
			Type:     AssertStoreCleared,
			Expected: "no stored mode or state",
			Actual:   "orchestration state remains",
		}
	}
	return nil
}

func toJSONMap(v any) (map[string]any, error) {
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

// matchValue compares decoded JSON values. Nested objects match as
// subsets; everything else must be equal.
func matchValue(actual, expected any) bool {
	expectedMap, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, v := range expectedMap {
		if !matchValue(actualMap[k], v) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	calls := result.Calls()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCallsContain:
			err = assertCallsContain(calls, assertion)
		case AssertCallsOrder:
			err = assertCallsOrder(calls, assertion)
		case AssertCallCount:
			err = assertCallCount(calls, assertion)
		case AssertFinalStep:
			err = assertFinalStep(result, assertion)
		case AssertExported:
			err = assertExported(result, assertion)
		case AssertStoreCleared:
			err = assertStoreCleared(result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
