package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astrokit/projector/internal/interpolate"
	"github.com/astrokit/projector/internal/library"
)

const testLibraryYaml = `
Catalogs:
  - CatalogTemplate:
      name: truth
      path_template: "{catalogs_dir}/truth/{healpix}/part-0.csv"
      iteration_vars: ['healpix']
  - CatalogTemplate:
      name: reduced
      path_template: "{catalogs_dir}/reduced_{selection}/{healpix}/part-0.csv"
      iteration_vars: ['healpix']
Files:
  - FileTemplate:
      name: train_file
      path_template: "{catalogs_dir}/train/{flavor}_{selection}_data.hdf5"
  - FileTemplate:
      name: test_file
      path_template: "{catalogs_dir}/test/{flavor}_{selection}_data.hdf5"
Pipelines:
  - PipelineTemplate:
      name: pz
      pipeline_class: rail.pipelines.estimation.pz_all.PzPipeline
      input_catalog_template: truth
      output_catalog_template: reduced
      input_file_templates:
        input_train:
          flavor_mode: train
        input_test:
          flavor_mode: test
      kwargs:
        algorithms: ['all']
Selections:
  - Selection:
      name: gold
      cuts:
        mag_i_lsst: [null, 25.5]
  - Selection:
      name: blend
      cuts:
        mag_i_lsst: [null, 26.0]
Subsamples:
  - Subsample:
      name: test_10
      seed: 42
      num_objects: 10
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
Reducers:
  - Reducer:
      name: column_cut
      Reduce: ColumnCutReducer
      Module: rail.projects.reducer
`

const testProjectYaml = `
Includes:
  - library.yaml
Project:
  Name: test_project
  PathTemplates:
    pipeline_path: "{project_scratch_dir}/{flavor}/{pipeline}.yaml"
    ceci_output_dir: "{project_scratch_dir}/{flavor}/output"
  CommonPaths:
    root: "@ROOT@"
    project_scratch_dir: "{root}/scratch"
    catalogs_dir: "{root}/catalogs"
  IterationVars:
    healpix: [3433, 3434]
  Baseline:
    catalog_tag: roman_rubin
    pipelines: ['all']
    file_aliases:
      train: train_file
      test: test_file
  Flavors:
    - Flavor:
        name: gold_knn
        pipelines: ['pz']
        pipeline_overrides:
          default:
            kwargs:
              PZAlgorithms: ['knn']
`

func loadTestProject(t *testing.T) (*Project, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "library.yaml"), []byte(testLibraryYaml), 0o644))
	projYaml := strings.ReplaceAll(testProjectYaml, "@ROOT@", dir)
	projPath := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(projPath, []byte(projYaml), 0o644))

	lib := library.New()
	p, err := Load(projPath, lib)
	require.NoError(t, err)
	return p, dir
}

func TestLoadProject(t *testing.T) {
	p, _ := loadTestProject(t)
	require.Equal(t, "test_project", p.Name)
	require.Equal(t, []string{"all"}, p.Pipelines)
	require.Equal(t, map[string][]string{"healpix": {"3433", "3434"}}, p.IterationVars)

	// Includes populated the library before the Project block was decoded.
	require.Equal(t, []string{"truth", "reduced"}, p.Library().CatalogTemplates.Names())
}

func TestLoadProjectMissingBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Other: {}\n"), 0o644))
	_, err := Load(path, library.New())
	require.ErrorContains(t, err, "no Project block")
}

func TestGetCommonPaths(t *testing.T) {
	p, dir := loadTestProject(t)
	common, err := p.GetCommonPaths()
	require.NoError(t, err)
	require.Equal(t, dir+"/scratch", common["project_scratch_dir"])
	require.Equal(t, dir+"/catalogs", common["catalogs_dir"])

	got, err := p.GetCommonPath("catalogs_dir", nil)
	require.NoError(t, err)
	require.Equal(t, dir+"/catalogs", got)

	_, err = p.GetCommonPath("nope", nil)
	require.ErrorContains(t, err, "catalogs_dir")
}

func TestGetPath(t *testing.T) {
	p, dir := loadTestProject(t)
	got, err := p.GetPath("pipeline_path", map[string]string{
		"pipeline": "pz", "flavor": "baseline",
	})
	require.NoError(t, err)
	require.Equal(t, dir+"/scratch/baseline/pz.yaml", got)

	_, err = p.GetPath("pipeline_path", nil)
	require.ErrorContains(t, err, "flavor")

	_, err = p.GetPath("missing_key", nil)
	require.ErrorContains(t, err, "pipeline_path")
}

func TestGetFlavors(t *testing.T) {
	p, _ := loadTestProject(t)
	flavors, err := p.GetFlavors()
	require.NoError(t, err)
	require.Len(t, flavors, 2)

	baseline := flavors["baseline"]
	require.Equal(t, "roman_rubin", baseline.CatalogTag)
	require.Equal(t, []string{"all"}, baseline.Pipelines)

	variant := flavors["gold_knn"]
	require.Equal(t, []string{"pz"}, variant.Pipelines)
	// Keys the variant does not override inherit the baseline values.
	require.Equal(t, "roman_rubin", variant.CatalogTag)
	require.Equal(t, "train_file", variant.FileAliases["train"])

	_, err = p.GetFlavor("missing")
	require.ErrorContains(t, err, "gold_knn")
}

func TestGetFileForFlavor(t *testing.T) {
	p, dir := loadTestProject(t)
	got, err := p.GetFileForFlavor("baseline", "train", map[string]string{"selection": "gold"})
	require.NoError(t, err)
	require.Equal(t, dir+"/catalogs/train/baseline_gold_data.hdf5", got)

	_, err = p.GetFileForFlavor("baseline", "validate", nil)
	require.ErrorContains(t, err, `label "validate"`)

	tmpl, err := p.GetFileMetadataForFlavor("baseline", "test")
	require.NoError(t, err)
	require.Equal(t, "test_file", tmpl.Name)
}

func TestGetCatalogFiles(t *testing.T) {
	p, dir := loadTestProject(t)
	files, err := p.GetCatalogFiles("truth", nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		dir + "/catalogs/truth/3433/part-0.csv",
		dir + "/catalogs/truth/3434/part-0.csv",
	}, files)

	reduced, err := p.GetCatalogFiles("reduced", map[string]string{"selection": "gold"})
	require.NoError(t, err)
	require.Equal(t, []string{
		dir + "/catalogs/reduced_gold/3433/part-0.csv",
		dir + "/catalogs/reduced_gold/3434/part-0.csv",
	}, reduced)

	_, err = p.GetCatalogFiles("missing", nil)
	require.ErrorContains(t, err, "truth")
}

func TestGetAlgorithms(t *testing.T) {
	p, _ := loadTestProject(t)
	algos, err := p.GetPZAlgorithms()
	require.NoError(t, err)
	require.Len(t, algos, 2)
	require.Equal(t, "TrainZEstimator", algos["trainz"]["Estimate"])
	require.NotContains(t, algos["trainz"], "name")

	algo, err := p.GetAlgorithm("PZAlgorithms", "knn")
	require.NoError(t, err)
	require.Equal(t, "KNearNeighInformer", algo["Inform"])

	_, err = p.GetAlgorithm("PZAlgorithms", "bpz")
	require.ErrorContains(t, err, "knn")

	_, err = p.GetAlgorithms("NoSuchType")
	require.Error(t, err)
}

func TestGetAlgorithmsRestricted(t *testing.T) {
	p, _ := loadTestProject(t)
	p.PZAlgorithms = []string{"knn"}

	algos, err := p.GetPZAlgorithms()
	require.NoError(t, err)
	require.Len(t, algos, 1)
	require.Contains(t, algos, "knn")
}

func TestGetFlavorArgs(t *testing.T) {
	p, _ := loadTestProject(t)

	got, err := p.GetFlavorArgs([]string{"all"})
	require.NoError(t, err)
	require.Equal(t, []string{"baseline", "gold_knn"}, got)

	// Unknown literals pass through; resolution is deferred to first use.
	got, err = p.GetFlavorArgs([]string{"gold_knn", "no_such_flavor"})
	require.NoError(t, err)
	require.Equal(t, []string{"gold_knn", "no_such_flavor"}, got)
}

func TestGetSelectionArgs(t *testing.T) {
	p, _ := loadTestProject(t)

	got, err := p.GetSelectionArgs([]string{"all"})
	require.NoError(t, err)
	require.Equal(t, []string{"gold", "blend"}, got)

	got, err = p.GetSelectionArgs([]string{"blend"})
	require.NoError(t, err)
	require.Equal(t, []string{"blend"}, got)
}

func TestGetSelection(t *testing.T) {
	p, _ := loadTestProject(t)
	sel, err := p.GetSelection("gold")
	require.NoError(t, err)
	require.Equal(t, "gold", sel.Name)

	_, err = p.GetSelection("platinum")
	require.ErrorContains(t, err, "blend")
}

func TestDescribe(t *testing.T) {
	p, _ := loadTestProject(t)
	var sb strings.Builder
	require.NoError(t, p.Describe(&sb))
	out := sb.String()
	require.Contains(t, out, "Name: test_project")
	require.Contains(t, out, "Flavors:\n- baseline\n- gold_knn\n")
}

func TestGenerateKwargsIterable(t *testing.T) {
	combos := GenerateKwargsIterable([]interpolate.Domain{
		{Name: "flavor", Values: []string{"baseline", "gold_knn"}},
		{Name: "selection", Values: []string{"gold", "blend"}},
	})
	require.Equal(t, []map[string]string{
		{"flavor": "baseline", "selection": "gold"},
		{"flavor": "baseline", "selection": "blend"},
		{"flavor": "gold_knn", "selection": "gold"},
		{"flavor": "gold_knn", "selection": "blend"},
	}, combos)

	// No domains still yields one empty combination, so callers loop once.
	require.Equal(t, []map[string]string{{}}, GenerateKwargsIterable(nil))
}

func TestIterationDomains(t *testing.T) {
	p, _ := loadTestProject(t)
	p.IterationVars["zbin"] = []string{"low", "high"}

	domains := p.IterationDomains()
	require.Equal(t, []interpolate.Domain{
		{Name: "healpix", Values: []string{"3433", "3434"}},
		{Name: "zbin", Values: []string{"low", "high"}},
	}, domains)

	require.Equal(t, []map[string]string{
		{"healpix": "3433", "zbin": "low"},
		{"healpix": "3433", "zbin": "high"},
		{"healpix": "3434", "zbin": "low"},
		{"healpix": "3434", "zbin": "high"},
	}, GenerateKwargsIterable(domains))
}
