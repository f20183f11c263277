package template

import "maps"

// MergeContexts returns a new context holding every key of contexts.
// Keys in later contexts win.
func MergeContexts(contexts ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, c := range contexts {
		maps.Copy(result, c)
	}
	return result
}
