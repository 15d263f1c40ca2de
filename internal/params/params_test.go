package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Base("Entity name").Extend(
		Option{Name: "path_template", Kind: KindString, Required: true, Help: "Path template"},
		Option{Name: "iteration_vars", Kind: KindStringList, Default: []string{}, Help: "Iteration variables"},
		Option{Name: "seed", Kind: KindInt, Default: 0, Help: "Random seed"},
	)
}

func TestResolve_Defaults(t *testing.T) {
	resolved, err := testSchema().Resolve(map[string]any{
		"name":          "truth",
		"path_template": "{root}/truth/{healpix}/part-0.csv",
	})
	require.NoError(t, err)
	require.Equal(t, "truth", resolved["name"])
	require.Equal(t, []string{}, resolved["iteration_vars"])
	require.Equal(t, 0, resolved["seed"])
}

func TestResolve_MissingRequired(t *testing.T) {
	_, err := testSchema().Resolve(map[string]any{"name": "truth"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "path_template")
}

func TestResolve_UnknownKey(t *testing.T) {
	_, err := testSchema().Resolve(map[string]any{
		"name":          "truth",
		"path_template": "p",
		"bogus":         1,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus")
	require.Contains(t, err.Error(), "path_template", "error should enumerate known parameters")
}

func TestResolve_KindMismatch(t *testing.T) {
	_, err := testSchema().Resolve(map[string]any{
		"name":          "truth",
		"path_template": 42,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected string")
}

func TestResolve_NormalizesYAMLValues(t *testing.T) {
	// yaml.Unmarshal produces []any and map[string]any; Resolve canonicalizes.
	resolved, err := testSchema().Resolve(map[string]any{
		"name":           "truth",
		"path_template":  "p",
		"iteration_vars": []any{"healpix", "band"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"healpix", "band"}, resolved["iteration_vars"])
}

func TestExtend_DoesNotMutateParent(t *testing.T) {
	base := Base("Name")
	child := base.Extend(Option{Name: "cuts", Kind: KindMap, Default: map[string]any{}})
	require.Len(t, base, 1)
	require.Len(t, child, 2)

	// Replacing an inherited option leaves the parent untouched.
	replaced := base.Extend(Option{Name: "name", Kind: KindString, Help: "other"})
	require.Len(t, replaced, 1)
	require.Equal(t, "other", replaced[0].Help)
	require.NotEqual(t, "other", base[0].Help)
}

func TestDecode_And_ToMap_RoundTrip(t *testing.T) {
	type entity struct {
		Name          string   `yaml:"name"`
		PathTemplate  string   `yaml:"path_template"`
		IterationVars []string `yaml:"iteration_vars"`
		Seed          int      `yaml:"seed"`
	}
	raw := map[string]any{
		"name":           "truth",
		"path_template":  "{root}/x",
		"iteration_vars": []any{"healpix"},
		"seed":           1234,
	}
	var e entity
	require.NoError(t, testSchema().Decode(raw, &e))
	require.Equal(t, "truth", e.Name)
	require.Equal(t, []string{"healpix"}, e.IterationVars)
	require.Equal(t, 1234, e.Seed)

	out, err := testSchema().ToMap(&e)
	require.NoError(t, err)
	require.Equal(t, "truth", out["name"])
	require.Equal(t, "{root}/x", out["path_template"])
	require.Equal(t, 1234, out["seed"])
}

func TestResolve_DefaultsAreCopied(t *testing.T) {
	schema := Base("Name").Extend(
		Option{Name: "tags", Kind: KindStringList, Default: []string{"a"}},
	)
	first, err := schema.Resolve(map[string]any{"name": "one"})
	require.NoError(t, err)
	firstTags := first["tags"].([]string)
	firstTags[0] = "mutated"

	second, err := schema.Resolve(map[string]any{"name": "two"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, second["tags"])
}
