// Package reconcile holds the pure merge functions the pipeline uses when a
// step must combine proposed configuration with previously fetched remote
// state. Nothing here performs I/O; every function is total over its inputs.
package reconcile

// EnvMode selects how proposed environment variables combine with the set
// already attached to the function configuration.
type EnvMode string

const (
	// EnvMerge unions proposed into existing; proposed wins on collision.
	EnvMerge EnvMode = "merge"

	// EnvReplace discards the existing set entirely.
	EnvReplace EnvMode = "replace"
)

// MergeEnvVars combines an existing and a proposed variable set under the
// given mode. A nil existing map is treated as empty, never as an error.
// The inputs are never mutated.
func MergeEnvVars(existing, proposed map[string]string, mode EnvMode) map[string]string {
	merged := make(map[string]string, len(existing)+len(proposed))
	if mode == EnvMerge {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range proposed {
		merged[k] = v
	}
	return merged
}

// AliasTarget is the resolved binding of a label to an immutable version.
// Assignment is always an overwrite of the single label, independent of any
// other labels on the function.
type AliasTarget struct {
	Label   string
	Version string
}

// ResolveAlias maps a label and a published version to an alias binding.
func ResolveAlias(label, version string) AliasTarget {
	return AliasTarget{Label: label, Version: version}
}

// StageVariables builds the variable map for a named gateway stage
// deployment. The lambdaVersion variable routes stage traffic to the
// matching function alias; extra entries are carried verbatim.
func StageVariables(label string, extra map[string]string) map[string]string {
	vars := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		vars[k] = v
	}
	vars["lambdaVersion"] = label
	return vars
}
