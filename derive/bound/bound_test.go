package bound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twoParams = []Param{{Name: "T", Constraint: "any"}, {Name: "K", Constraint: "comparable"}}

func TestCompose_Auto(t *testing.T) {
	set, err := Compose(Policy{Kind: Auto}, twoParams, Clone)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, []Predicate{
		{Param: "T", Capability: Clone},
		{Param: "K", Capability: Clone},
	}, set.Predicates())
}

func TestCompose_AutoCopyOnly(t *testing.T) {
	set, err := Compose(Policy{Kind: Auto}, twoParams, Copy)
	require.NoError(t, err)
	for _, p := range set.Predicates() {
		assert.Equal(t, Copy, p.Capability)
	}
	assert.Equal(t, "[T any, K comparable]", TypeParams(twoParams, set))
}

func TestCompose_Text(t *testing.T) {
	set, err := Compose(Policy{Kind: Text, Text: "T: Cloner[T], K: comparable"}, twoParams, Clone)
	require.NoError(t, err)
	assert.Equal(t, []Predicate{
		{Param: "T", Constraint: "Cloner[T]"},
		{Param: "K", Constraint: "comparable"},
	}, set.Predicates())
	assert.Equal(t, "[T Cloner[T], K comparable]", TypeParams(twoParams, set))
}

func TestCompose_List(t *testing.T) {
	policy := Policy{Kind: List, Items: []Predicate{
		{Param: "T", Constraint: "fmt.Stringer"},
		{Param: "T", Constraint: "fmt.Stringer"},
	}}
	set, err := Compose(policy, twoParams, Clone)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Empty(t, set.For("K"))
}

func TestCompose_None(t *testing.T) {
	set, err := Compose(Policy{Kind: None}, twoParams, Clone)
	require.NoError(t, err)
	assert.Zero(t, set.Len())
	assert.Equal(t, "[T any, K comparable]", TypeParams(twoParams, set))
}

func TestCompose_Errors(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{name: "undeclared param", policy: Policy{Kind: Text, Text: "U: any"}},
		{name: "missing colon", policy: Policy{Kind: Text, Text: "T comparable"}},
		{name: "empty text", policy: Policy{Kind: Text, Text: "  "}},
		{name: "empty constraint", policy: Policy{Kind: List, Items: []Predicate{{Param: "T"}}}},
		{name: "bad name", policy: Policy{Kind: Text, Text: "1T: any"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.policy, twoParams, Clone)
			assert.Error(t, err)
		})
	}
}

func TestParseText_NestedComma(t *testing.T) {
	preds, err := ParseText("T: Pair[K, V], K: comparable")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "Pair[K, V]", preds[0].Constraint)
}

func TestConstraint(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		preds []Predicate
		want  string
	}{
		{name: "nothing", param: Param{Name: "T"}, want: "any"},
		{name: "declared only", param: Param{Name: "T", Constraint: "comparable"}, want: "comparable"},
		{name: "clone", param: Param{Name: "T", Constraint: "any"}, preds: []Predicate{{Param: "T", Capability: Clone}}, want: "interface{ Clone() T }"},
		{name: "declared and clone", param: Param{Name: "T", Constraint: "comparable"}, preds: []Predicate{{Param: "T", Capability: Clone}}, want: "interface{ comparable; Clone() T }"},
		{name: "default adds nothing", param: Param{Name: "T", Constraint: "any"}, preds: []Predicate{{Param: "T", Capability: Default}}, want: "any"},
		{name: "other param ignored", param: Param{Name: "T"}, preds: []Predicate{{Param: "K", Capability: Clone}}, want: "any"},
		{name: "explicit method element", param: Param{Name: "T"}, preds: []Predicate{{Param: "T", Constraint: "Dup() T"}}, want: "interface{ Dup() T }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Constraint(tt.param, tt.preds))
		})
	}
}

func TestTypeArgs(t *testing.T) {
	assert.Equal(t, "", TypeArgs(nil))
	assert.Equal(t, "[T, K]", TypeArgs(twoParams))
	assert.Equal(t, "", TypeParams(nil, nil))
}
