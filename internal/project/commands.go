package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/astrokit/projector/internal/interpolate"
	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/log"
)

// GenerateCeciCommand assembles the token list for one invocation of the
// external pipeline tool. An empty config derives the stage-configuration
// path from the pipeline path. Input and keyword maps are emitted in sorted
// key order so commands are reproducible.
func GenerateCeciCommand(ceciBin, pipelinePath, config string, inputs map[string]string, outputDir, logDir string, kwargs map[string]string) []string {
	if config == "" {
		config = strings.Replace(pipelinePath, ".yaml", "_config.yml", 1)
	}
	cmd := []string{
		ceciBin,
		pipelinePath,
		"config=" + config,
		"output_dir=" + outputDir,
		"log_dir=" + logDir,
	}
	for _, key := range sortedKeys(inputs) {
		cmd = append(cmd, fmt.Sprintf("inputs.%s=%s", key, inputs[key]))
	}
	for _, key := range sortedKeys(kwargs) {
		cmd = append(cmd, fmt.Sprintf("%s=%s", key, kwargs[key]))
	}
	return cmd
}

// resolvePipelineInput resolves one input_file_templates entry. The
// flavor_mode value names a flavor file label; a label the flavor does not
// alias falls back to a direct file-template lookup.
func (p *Project) resolvePipelineInput(flavor string, spec any, interpolants map[string]string) (string, error) {
	block, ok := spec.(map[string]any)
	if !ok {
		return "", fmt.Errorf("input file template must be a mapping, got %T", spec)
	}
	label, ok := block["flavor_mode"].(string)
	if !ok {
		return "", fmt.Errorf("input file template must carry a flavor_mode, got %v", sortedKeys(block))
	}
	f, err := p.GetFlavor(flavor)
	if err != nil {
		return "", err
	}
	if _, aliasErr := f.FileAlias(label); aliasErr == nil {
		return p.GetFileForFlavor(flavor, label, interpolants)
	}
	merged := map[string]string{"flavor": flavor}
	for k, v := range interpolants {
		merged[k] = v
	}
	return p.GetFile(label, merged)
}

// MakePipelineSingleInputCommand builds the command line running one
// pipeline on its per-flavor input files.
func (p *Project) MakePipelineSingleInputCommand(ceciBin, pipelineName, flavor string, interpolants map[string]string) ([]string, error) {
	tmpl, err := p.GetPipeline(pipelineName)
	if err != nil {
		return nil, err
	}
	pathVars := map[string]string{"pipeline": pipelineName, "flavor": flavor}
	for k, v := range interpolants {
		pathVars[k] = v
	}
	pipelinePath, err := p.GetPath("pipeline_path", pathVars)
	if err != nil {
		return nil, err
	}
	outputDir, err := p.GetPath("ceci_output_dir", pathVars)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]string, len(tmpl.InputFileTemplates))
	for key, spec := range tmpl.InputFileTemplates {
		resolved, err := p.resolvePipelineInput(flavor, spec, interpolants)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q input %q: %w", pipelineName, key, err)
		}
		inputs[key] = resolved
	}

	logDir := filepath.Join(outputDir, "logs")
	return GenerateCeciCommand(ceciBin, pipelinePath, "", inputs, outputDir, logDir, nil), nil
}

// CommandBatch is one group of commands to run together, with the path the
// slurm submit script is written to when running in batch mode.
type CommandBatch struct {
	Commands   [][]string
	ScriptPath string
}

// MakePipelineCatalogCommands builds one command batch per expanded
// combination of the project's iteration variables, running a pipeline
// across an input catalog chunk by chunk.
func (p *Project) MakePipelineCatalogCommands(ceciBin, pipelineName, flavor string, interpolants map[string]string) ([]CommandBatch, error) {
	tmpl, err := p.GetPipeline(pipelineName)
	if err != nil {
		return nil, err
	}
	if tmpl.InputCatalogTemplate == "" || tmpl.OutputCatalogTemplate == "" {
		return nil, fmt.Errorf("pipeline %q does not run on catalogs", pipelineName)
	}
	pathVars := map[string]string{"pipeline": pipelineName, "flavor": flavor}
	for k, v := range interpolants {
		pathVars[k] = v
	}
	pipelinePath, err := p.GetPath("pipeline_path", pathVars)
	if err != nil {
		return nil, err
	}

	merged := map[string]string{"flavor": flavor}
	for k, v := range interpolants {
		merged[k] = v
	}
	sources, err := p.GetCatalogFiles(tmpl.InputCatalogTemplate, merged)
	if err != nil {
		return nil, err
	}
	sinks, err := p.GetCatalogFiles(tmpl.OutputCatalogTemplate, merged)
	if err != nil {
		return nil, err
	}
	if len(sources) != len(sinks) {
		return nil, fmt.Errorf("pipeline %q: %d input catalog files but %d output files",
			pipelineName, len(sources), len(sinks))
	}

	batches := make([]CommandBatch, 0, len(sources))
	for i, src := range sources {
		sinkDir := filepath.Dir(sinks[i])
		cmd := GenerateCeciCommand(ceciBin, pipelinePath, "",
			map[string]string{"input": src}, sinkDir, filepath.Join(sinkDir, "logs"), nil)
		batches = append(batches, CommandBatch{
			Commands:   [][]string{cmd},
			ScriptPath: filepath.Join(sinkDir, fmt.Sprintf("submit_%s_%d.sh", pipelineName, i)),
		})
	}
	return batches, nil
}

// BuildSpec carries everything a pipeline builder needs to materialize one
// pipeline definition file.
type BuildSpec struct {
	PipelineClass string
	OutputYaml    string
	StagesConfig  string
	OutputDir     string
	LogDir        string
	CatalogTag    string
	Kwargs        map[string]any
}

// PipelineBuilder materializes pipeline definition files. The concrete
// builder is supplied by the caller; building happens outside this package.
type PipelineBuilder interface {
	BuildAndWrite(spec BuildSpec) error
}

// algorithm-set kwargs that expand their "all" sentinel during a build.
var kwargAlgorithmSets = map[string]string{
	"selectors":    "SpecSelections",
	"algorithms":   "PZAlgorithms",
	"classifiers":  "Classifiers",
	"summarizers":  "Summarizers",
	"error_models": "ErrorModels",
}

// BuildPipelines materializes pipeline definition files for one flavor.
// Existing outputs are skipped unless force is set. Per-pipeline overrides
// from the flavor are written alongside as a stage-configuration file.
func (p *Project) BuildPipelines(builder PipelineBuilder, flavor string, force bool) error {
	outputDir, err := p.GetCommonPath("project_scratch_dir", nil)
	if err != nil {
		return err
	}
	f, err := p.GetFlavor(flavor)
	if err != nil {
		return err
	}
	doAll := contains(f.Pipelines, "all")

	names := p.Pipelines
	if contains(names, "all") {
		names = p.lib.PipelineTemplates.Names()
	}
	for _, pipelineName := range names {
		if !doAll && !contains(f.Pipelines, pipelineName) {
			log.Info(log.CatProject, "skipping pipeline not in flavor",
				"pipeline", pipelineName, "flavor", flavor)
			continue
		}
		tmpl, err := p.GetPipeline(pipelineName)
		if err != nil {
			return err
		}
		outputYaml, err := p.GetPath("pipeline_path", map[string]string{
			"pipeline": pipelineName, "flavor": flavor,
		})
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(outputYaml); statErr == nil && !force {
			log.Info(log.CatProject, "skipping existing pipeline", "path", outputYaml)
			continue
		}
		pipeOutDir := filepath.Dir(outputYaml)
		if err := os.MkdirAll(pipeOutDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", pipeOutDir, err)
		}

		kwargs, err := p.expandPipelineKwargs(tmpl.Kwargs)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", pipelineName, err)
		}

		overrides := map[string]any{}
		if defaults, ok := f.PipelineOverrides["default"].(map[string]any); ok {
			for k, v := range defaults {
				overrides[k] = v
			}
		}
		if specific, ok := f.PipelineOverrides[pipelineName].(map[string]any); ok {
			for k, v := range specific {
				overrides[k] = v
			}
		}

		stagesConfig := ""
		if len(overrides) > 0 {
			if ctorKwargs, ok := overrides["kwargs"].(map[string]any); ok {
				delete(overrides, "kwargs")
				if err := p.applyCtorKwargs(ctorKwargs, kwargs); err != nil {
					return fmt.Errorf("pipeline %q: %w", pipelineName, err)
				}
			}
			if len(overrides) > 0 {
				stagesConfig = filepath.Join(pipeOutDir, fmt.Sprintf("%s_%s_overrides.yml", pipelineName, flavor))
				text, err := yaml.Marshal(overrides)
				if err != nil {
					return err
				}
				if err := os.WriteFile(stagesConfig, text, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", stagesConfig, err)
				}
			}
		}

		log.Info(log.CatProject, "building pipeline", "pipeline", pipelineName,
			"flavor", flavor, "output", outputYaml)
		if err := builder.BuildAndWrite(BuildSpec{
			PipelineClass: tmpl.PipelineClass,
			OutputYaml:    outputYaml,
			StagesConfig:  stagesConfig,
			OutputDir:     outputDir,
			LogDir:        fmt.Sprintf("%s/logs/%s", outputDir, pipelineName),
			CatalogTag:    f.CatalogTag,
			Kwargs:        kwargs,
		}); err != nil {
			return fmt.Errorf("building pipeline %q: %w", pipelineName, err)
		}
	}
	return nil
}

// expandPipelineKwargs copies a pipeline's constructor kwargs, replacing any
// algorithm-set list containing "all" with the project's full set.
func (p *Project) expandPipelineKwargs(kwargs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(kwargs))
	for key, val := range kwargs {
		out[key] = val
		list, ok := val.([]any)
		if !ok {
			continue
		}
		isAll := false
		for _, item := range list {
			if item == "all" {
				isAll = true
				break
			}
		}
		if !isAll {
			continue
		}
		algorithmType, ok := kwargAlgorithmSets[key]
		if !ok {
			continue
		}
		algos, err := p.GetAlgorithms(algorithmType)
		if err != nil {
			return nil, err
		}
		out[key] = algos
	}
	return out, nil
}

// applyCtorKwargs merges flavor-level constructor overrides into the
// pipeline kwargs. A PZAlgorithms list narrows the algorithms set to the
// named subset.
func (p *Project) applyCtorKwargs(ctorKwargs map[string]any, kwargs map[string]any) error {
	if rawAlgos, ok := ctorKwargs["PZAlgorithms"]; ok {
		delete(ctorKwargs, "PZAlgorithms")
		list, ok := rawAlgos.([]any)
		if !ok {
			return fmt.Errorf("PZAlgorithms override must be a list, got %T", rawAlgos)
		}
		all, err := p.GetPZAlgorithms()
		if err != nil {
			return err
		}
		subset := make(map[string]map[string]any, len(list))
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return fmt.Errorf("PZAlgorithms override entries must be strings, got %T", item)
			}
			algo, ok := all[name]
			if !ok {
				return fmt.Errorf("algorithm %q not found in %v", name, sortedKeys(all))
			}
			subset[name] = algo
		}
		kwargs["algorithms"] = subset
	}
	for k, v := range ctorKwargs {
		kwargs[k] = v
	}
	return nil
}

// SubsampleData draws a named subsample out of a catalog and writes it to
// the file the template resolves to. Returns the output path; dry runs
// resolve everything but skip the write.
func (p *Project) SubsampleData(catalogTemplate, fileTemplate, subsamplerName, subsampleName string, dryRun bool, interpolants map[string]string) (string, error) {
	resolved, err := p.GetFile(fileTemplate, interpolants)
	if err != nil {
		return "", err
	}
	output := strings.Replace(resolved, ".hdf5", ".csv", 1)

	holder, err := p.GetAlgorithm("Subsamplers", subsamplerName)
	if err != nil {
		return "", err
	}
	className, ok := holder["Subsample"].(string)
	if !ok {
		return "", fmt.Errorf("subsampler %q has no Subsample stage", subsamplerName)
	}
	sub, err := p.lib.Subsamples.Get(subsampleName)
	if err != nil {
		return "", err
	}
	impl, err := library.NewSubsampler(className, map[string]any{
		"name":        sub.Name,
		"seed":        sub.Seed,
		"num_objects": sub.NumObjects,
	})
	if err != nil {
		return "", err
	}

	sources, err := p.GetCatalogFiles(catalogTemplate, interpolants)
	if err != nil {
		return "", err
	}
	if dryRun {
		log.Info(log.CatProject, "dry run, skipping subsample", "output", output)
		return output, nil
	}
	if err := impl.Subsample(sources, output); err != nil {
		return "", err
	}
	return output, nil
}

// ReduceData applies a selection's cuts to every file of an input catalog,
// writing the reduced copies to the output catalog's paths. Returns the
// sink paths; dry runs resolve everything but skip the reduction.
func (p *Project) ReduceData(catalogTemplate, outputCatalogTemplate, reducerName, inputSelection, selection string, dryRun bool, interpolants map[string]string) ([]string, error) {
	srcVars := map[string]string{"selection": inputSelection}
	sinkVars := map[string]string{"selection": selection}
	for k, v := range interpolants {
		srcVars[k] = v
		sinkVars[k] = v
	}
	sources, err := p.GetCatalogFiles(catalogTemplate, srcVars)
	if err != nil {
		return nil, err
	}
	sinks, err := p.GetCatalogFiles(outputCatalogTemplate, sinkVars)
	if err != nil {
		return nil, err
	}
	if len(sources) != len(sinks) {
		return nil, fmt.Errorf("reduce %q: %d sources but %d sinks", catalogTemplate, len(sources), len(sinks))
	}

	holder, err := p.GetAlgorithm("Reducers", reducerName)
	if err != nil {
		return nil, err
	}
	className, ok := holder["Reduce"].(string)
	if !ok {
		return nil, fmt.Errorf("reducer %q has no Reduce stage", reducerName)
	}
	sel, err := p.GetSelection(selection)
	if err != nil {
		return nil, err
	}
	impl, err := library.NewReducer(className, map[string]any{
		"name": sel.Name,
		"cuts": sel.Cuts,
	})
	if err != nil {
		return nil, err
	}

	if dryRun {
		log.Info(log.CatProject, "dry run, skipping reduce", "sinks", len(sinks))
		return sinks, nil
	}
	for i, src := range sources {
		if err := impl.Reduce(src, sinks[i]); err != nil {
			return nil, err
		}
	}
	return sinks, nil
}

// IterationDomains returns the project's iteration variables as ordered
// domains, sorted by name so expansion order is reproducible.
func (p *Project) IterationDomains() []interpolate.Domain {
	keys := sortedKeys(p.IterationVars)
	out := make([]interpolate.Domain, len(keys))
	for i, key := range keys {
		out[i] = interpolate.Domain{Name: key, Values: p.IterationVars[key]}
	}
	return out
}
