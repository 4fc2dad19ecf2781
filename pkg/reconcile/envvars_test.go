package reconcile

import (
	"reflect"
	"testing"
)

func TestMergeEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		existing map[string]string
		proposed map[string]string
		mode     EnvMode
		want     map[string]string
	}{
		{
			name:     "merge keeps existing and overrides collisions",
			existing: map[string]string{"A": "1", "B": "2"},
			proposed: map[string]string{"B": "20", "C": "3"},
			mode:     EnvMerge,
			want:     map[string]string{"A": "1", "B": "20", "C": "3"},
		},
		{
			name:     "merge with nil existing behaves as empty",
			existing: nil,
			proposed: map[string]string{"A": "1"},
			mode:     EnvMerge,
			want:     map[string]string{"A": "1"},
		},
		{
			name:     "merge with empty proposed keeps existing",
			existing: map[string]string{"A": "1"},
			proposed: nil,
			mode:     EnvMerge,
			want:     map[string]string{"A": "1"},
		},
		{
			name:     "replace discards existing entirely",
			existing: map[string]string{"A": "1", "B": "2"},
			proposed: map[string]string{"C": "3"},
			mode:     EnvReplace,
			want:     map[string]string{"C": "3"},
		},
		{
			name:     "replace with empty proposed yields empty set",
			existing: map[string]string{"A": "1"},
			proposed: map[string]string{},
			mode:     EnvReplace,
			want:     map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnvVars(tt.existing, tt.proposed, tt.mode)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeEnvVars_DoesNotMutateInputs(t *testing.T) {
	existing := map[string]string{"A": "1"}
	proposed := map[string]string{"A": "2"}

	MergeEnvVars(existing, proposed, EnvMerge)

	if existing["A"] != "1" {
		t.Errorf("existing map mutated: %v", existing)
	}
	if proposed["A"] != "2" {
		t.Errorf("proposed map mutated: %v", proposed)
	}
}

func TestResolveAlias(t *testing.T) {
	got := ResolveAlias("production", "7")
	if got.Label != "production" || got.Version != "7" {
		t.Errorf("ResolveAlias() = %+v", got)
	}
}

func TestStageVariables(t *testing.T) {
	got := StageVariables("dev", map[string]string{"tableName": "orders-dev"})
	want := map[string]string{"lambdaVersion": "dev", "tableName": "orders-dev"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StageVariables() = %v, want %v", got, want)
	}

	// lambdaVersion always reflects the stage label, even if supplied in extra.
	got = StageVariables("dev", map[string]string{"lambdaVersion": "stale"})
	if got["lambdaVersion"] != "dev" {
		t.Errorf("lambdaVersion = %q, want stage label", got["lambdaVersion"])
	}
}
