package library

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const libraryYaml = `
Catalogs:
  - CatalogTemplate:
      name: truth
      path_template: "{catalogs_dir}/{project}_{sim_version}/{healpix}/part-0.pq"
      iteration_vars: ['healpix']
  - CatalogTemplate:
      name: reduced
      path_template: "{catalogs_dir}/{project}_{sim_version}_{selection}/{healpix}/part-0.pq"
      iteration_vars: ['healpix']
Files:
  - FileTemplate:
      name: test_file_100k
      path_template: "{catalogs_dir}/test/{project}_{selection}_baseline_100k_data.hdf5"
Pipelines:
  - PipelineTemplate:
      name: pz
      pipeline_class: rail.pipelines.estimation.pz_all.PzPipeline
      input_catalog_template: degraded
      output_catalog_template: degraded
      input_file_templates:
        input_train:
          flavor_mode: train_file_100k
        input_test:
          flavor_mode: test_file_100k
      kwargs:
        algorithms: ['all']
Selections:
  - Selection:
      name: maglim_25.5
      cuts:
        maglim_i: [null, 25.5]
Subsamples:
  - Subsample:
      name: test_100k
      seed: 1234
      num_objects: 100000
PZAlgorithms:
  - PZAlgorithm:
      name: trainz
      Estimate: TrainZEstimator
      Inform: TrainZInformer
      Module: rail.estimation.algos.train_z
  - PZAlgorithm:
      name: knn
      Estimate: KNearNeighEstimator
      Inform: KNearNeighInformer
      Module: rail.estimation.algos.k_nearneigh
Subsamplers:
  - Subsampler:
      name: random_subsampler
      Subsample: RandomSubsampler
      Module: rail.projects.subsampler
`

func writeLibraryFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLibraryLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeLibraryFile(t, dir, "library.yaml", libraryYaml)

	lib := New()
	require.NoError(t, lib.LoadYAML(path))

	require.Equal(t, []string{"truth", "reduced"}, lib.CatalogTemplates.Names())
	require.Equal(t, []string{"test_file_100k"}, lib.FileTemplates.Names())
	require.Equal(t, []string{"pz"}, lib.PipelineTemplates.Names())
	require.Equal(t, []string{"maglim_25.5"}, lib.Selections.Names())
	require.Equal(t, []string{"test_100k"}, lib.Subsamples.Names())

	sub, err := lib.Subsamples.Get("test_100k")
	require.NoError(t, err)
	require.Equal(t, 1234, sub.Seed)
	require.Equal(t, 100000, sub.NumObjects)

	alg, err := lib.GetAlgorithm("PZAlgorithms", "knn")
	require.NoError(t, err)
	require.Equal(t, "rail.estimation.algos.k_nearneigh", alg.Module)
	cls, err := alg.StageClass("Estimate")
	require.NoError(t, err)
	require.Equal(t, "KNearNeighEstimator", cls)

	_, err = alg.StageClass("Summarize")
	require.Error(t, err)

	_, err = lib.GetAlgorithm("NoSuchType", "knn")
	require.Error(t, err)

	_, err = lib.GetAlgorithm("PZAlgorithms", "missing")
	require.Error(t, err)
}

func TestLibraryAlgorithmMap(t *testing.T) {
	dir := t.TempDir()
	path := writeLibraryFile(t, dir, "library.yaml", libraryYaml)

	lib := New()
	require.NoError(t, lib.LoadYAML(path))

	byName, err := lib.AlgorithmMap("PZAlgorithms")
	require.NoError(t, err)
	require.Len(t, byName, 2)
	require.Contains(t, byName, "trainz")
	require.NotContains(t, byName["trainz"], "name")
	require.Equal(t, "TrainZEstimator", byName["trainz"]["Estimate"])
}

func TestLibraryLoadCumulativeAndClear(t *testing.T) {
	dir := t.TempDir()
	first := writeLibraryFile(t, dir, "first.yaml", `
Selections:
  - Selection:
      name: gold
      cuts:
        maglim_i: [null, 25.5]
`)
	second := writeLibraryFile(t, dir, "second.yaml", `
Selections:
  - Selection:
      name: blend
      cuts:
        maglim_i: [null, 26.0]
`)

	lib := New()
	require.NoError(t, lib.LoadYAML(first))
	require.NoError(t, lib.LoadYAML(second))
	require.Equal(t, []string{"gold", "blend"}, lib.Selections.Names())

	// Re-loading the same file collides on names.
	require.Error(t, lib.LoadYAML(first))

	lib.Clear()
	require.Zero(t, lib.Selections.Len())
	require.NoError(t, lib.LoadYAML(first))
}

func TestLibraryIncludes(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "selections.yaml", `
Selections:
  - Selection:
      name: gold
      cuts:
        maglim_i: [null, 25.5]
`)
	top := writeLibraryFile(t, dir, "top.yaml", `
Includes:
  - selections.yaml
Subsamples:
  - Subsample:
      name: test_10
      seed: 42
      num_objects: 10
`)

	lib := New()
	require.NoError(t, lib.LoadYAML(top))
	require.Equal(t, []string{"gold"}, lib.Selections.Names())
	require.Equal(t, []string{"test_10"}, lib.Subsamples.Names())
}

func TestLibraryIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "a.yaml", "Includes:\n  - b.yaml\n")
	a := filepath.Join(dir, "a.yaml")
	writeLibraryFile(t, dir, "b.yaml", "Includes:\n  - a.yaml\n")

	lib := New()
	err := lib.LoadYAML(a)
	require.ErrorContains(t, err, "include cycle")
}

func TestLibraryBadTags(t *testing.T) {
	dir := t.TempDir()

	unknownTop := writeLibraryFile(t, dir, "bad_top.yaml", "Widgets:\n  - Widget:\n      name: w\n")
	lib := New()
	require.ErrorContains(t, lib.LoadYAML(unknownTop), `yaml tag "Widgets"`)

	unknownBlock := writeLibraryFile(t, dir, "bad_block.yaml", `
Catalogs:
  - NotACatalog:
      name: oops
`)
	lib = New()
	require.ErrorContains(t, lib.LoadYAML(unknownBlock), "expecting one of")
}

func TestLibraryPrintContents(t *testing.T) {
	dir := t.TempDir()
	path := writeLibraryFile(t, dir, "library.yaml", libraryYaml)

	lib := New()
	require.NoError(t, lib.LoadYAML(path))

	var buf bytes.Buffer
	lib.PrintContents(&buf)
	out := buf.String()
	require.Contains(t, out, "CatalogTemplates:")
	require.Contains(t, out, "truth")
	require.Contains(t, out, "PZAlgorithms:")
	require.Contains(t, out, "trainz")
}

func TestSelectionCutBounds(t *testing.T) {
	sel, err := NewSelection(map[string]any{
		"name": "gold",
		"cuts": map[string]any{"maglim_i": []any{nil, 25.5}},
	})
	require.NoError(t, err)

	lo, hi, err := sel.CutBounds("maglim_i")
	require.NoError(t, err)
	require.Nil(t, lo)
	require.NotNil(t, hi)
	require.Equal(t, 25.5, *hi)

	_, _, err = sel.CutBounds("redshift")
	require.Error(t, err)
}
