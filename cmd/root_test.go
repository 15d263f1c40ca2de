package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const cmdLibraryYaml = `
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
      path_template: "{catalogs_dir}/train/{flavor}_{selection}_data.csv"
  - FileTemplate:
      name: test_file
      path_template: "{catalogs_dir}/test/{flavor}_{selection}_data.csv"
Pipelines:
  - PipelineTemplate:
      name: pz
      pipeline_class: rail.pipelines.estimation.pz_all.PzPipeline
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
PZAlgorithms:
  - PZAlgorithm:
      name: trainz
      Estimate: TrainZEstimator
      Inform: TrainZInformer
      Module: rail.estimation.algos.train_z
Reducers:
  - Reducer:
      name: column_cut
      Reduce: ColumnCutReducer
      Module: rail.projects.reducer
`

const cmdProjectYaml = `
Includes:
  - library.yaml
Project:
  Name: cmd_project
  PathTemplates:
    pipeline_path: "{project_scratch_dir}/{flavor}/{pipeline}.yaml"
    ceci_output_dir: "{project_scratch_dir}/{flavor}/output"
  CommonPaths:
    root: "@ROOT@"
    project_scratch_dir: "{root}/scratch"
    catalogs_dir: "{root}/catalogs"
  IterationVars:
    healpix: [3433]
  Baseline:
    catalog_tag: roman_rubin
    file_aliases:
      train: train_file
      test: test_file
`

func writeCmdFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "library.yaml"), []byte(cmdLibraryYaml), 0o644))
	projYaml := strings.ReplaceAll(cmdProjectYaml, "@ROOT@", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte(projYaml), 0o644))
	return dir
}

// execute runs the root command with args, capturing combined output. The
// accumulated exit status is reset first.
func execute(t *testing.T, args ...string) (string, int, error) {
	t.Helper()
	exitStatus = 0
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), exitStatus, err
}

func TestInspectCommand(t *testing.T) {
	dir := writeCmdFixture(t)
	out, status, err := execute(t, "inspect", filepath.Join(dir, "project.yaml"))
	require.NoError(t, err)
	require.Zero(t, status)
	require.Contains(t, out, "cmd_project")
}

func TestInspectMissingFile(t *testing.T) {
	_, _, err := execute(t, "inspect", "/nonexistent/project.yaml")
	require.Error(t, err)
}

func TestBuildCommand(t *testing.T) {
	dir := writeCmdFixture(t)
	_, status, err := execute(t, "build", filepath.Join(dir, "project.yaml"))
	require.NoError(t, err)
	require.Zero(t, status)

	pipeline := filepath.Join(dir, "scratch", "baseline", "pz.yaml")
	require.FileExists(t, pipeline)
	require.FileExists(t, filepath.Join(dir, "scratch", "baseline", "pz_config.yml"))

	content, err := os.ReadFile(pipeline)
	require.NoError(t, err)
	require.Contains(t, string(content), "rail.pipelines.estimation.pz_all.PzPipeline")
	// The "all" sentinel expanded to the project's algorithms.
	require.Contains(t, string(content), "trainz")
}

func TestReduceDryRun(t *testing.T) {
	dir := writeCmdFixture(t)
	out, status, err := execute(t, "reduce", filepath.Join(dir, "project.yaml"),
		"--catalog", "truth", "--output-catalog", "reduced",
		"--reducer", "column_cut", "--dry-run")
	require.NoError(t, err)
	require.Zero(t, status)
	require.Contains(t, out, "selection gold: 1 files")
}

func TestReduceUnknownReducer(t *testing.T) {
	dir := writeCmdFixture(t)
	out, status, err := execute(t, "reduce", filepath.Join(dir, "project.yaml"),
		"--catalog", "truth", "--output-catalog", "reduced",
		"--reducer", "nope", "--dry-run")
	require.NoError(t, err)
	require.Equal(t, 1, status)
	require.Contains(t, out, `algorithm "nope"`)
}

func TestRunDryRun(t *testing.T) {
	dir := writeCmdFixture(t)
	// Build first so the single-input command has a pipeline to point at.
	_, status, err := execute(t, "build", filepath.Join(dir, "project.yaml"))
	require.NoError(t, err)
	require.Zero(t, status)

	_, status, err = execute(t, "run", filepath.Join(dir, "project.yaml"),
		"--pipeline", "pz", "--run-mode", "dry_run", "--selection", "gold")
	require.NoError(t, err)
	require.Zero(t, status)
}

func TestRunUnknownPipeline(t *testing.T) {
	dir := writeCmdFixture(t)
	_, _, err := execute(t, "run", filepath.Join(dir, "project.yaml"),
		"--pipeline", "nope", "--run-mode", "dry_run")
	require.ErrorContains(t, err, `"nope" not found`)
}

func TestPlotMissingFile(t *testing.T) {
	_, _, err := execute(t, "plot", "/nonexistent/plots.yaml")
	require.Error(t, err)
}
