package plotting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/astrokit/projector/internal/project"
)

// Extractor pulls a plotting payload out of project files. Implementations
// declare their input contract the same way plotters do.
type Extractor interface {
	Name() string
	Inputs() map[string]InputKind
	Extract(inputs Payload) (Payload, error)
}

// extractorClasses is the closed set of extractor implementations.
var extractorClasses = map[string]func() Extractor{
	"PointEstimateExtractor": func() Extractor { return &pointEstimateExtractor{} },
	"MultiDatasetExtractor":  func() Extractor { return &multiDatasetExtractor{} },
}

// NewExtractor builds an extractor of the named class.
func NewExtractor(class string) (Extractor, error) {
	ctor, ok := extractorClasses[class]
	if !ok {
		known := make([]string, 0, len(extractorClasses))
		for name := range extractorClasses {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("extractor class %q not found, known classes are %v", class, known)
	}
	return ctor(), nil
}

// Column names in the tabular catalog and estimate files.
const (
	truthColumn    = "redshift"
	estimateColumn = "zmode"
)

// pointEstimateExtractor reads the true redshifts and one algorithm's point
// estimates for a (selection, flavor) combination. The truth comes from the
// flavor's tagged catalog file, the estimates from the pipeline output
// directory.
type pointEstimateExtractor struct{}

func (e *pointEstimateExtractor) Name() string { return "PointEstimateExtractor" }

func (e *pointEstimateExtractor) Inputs() map[string]InputKind {
	return map[string]InputKind{
		"project":   KindProject,
		"selection": KindString,
		"flavor":    KindString,
		"tag":       KindString,
		"algo":      KindString,
	}
}

func (e *pointEstimateExtractor) Extract(inputs Payload) (Payload, error) {
	if err := ValidateInputs("extractor PointEstimateExtractor", e.Inputs(), inputs); err != nil {
		return nil, err
	}
	proj := inputs["project"].(*project.Project)
	selection := inputs["selection"].(string)
	flavor := inputs["flavor"].(string)
	tag := inputs["tag"].(string)
	algo := inputs["algo"].(string)

	truthPath, err := proj.GetFileForFlavor(flavor, tag, map[string]string{"selection": selection})
	if err != nil {
		return nil, err
	}
	truth, err := readColumn(truthPath, truthColumn)
	if err != nil {
		return nil, err
	}

	outdir, err := proj.GetPath("ceci_output_dir", map[string]string{
		"selection": selection,
		"flavor":    flavor,
	})
	if err != nil {
		return nil, err
	}
	estimatePath := filepath.Join(outdir, fmt.Sprintf("output_estimate_%s.csv", algo))
	estimate, err := readColumn(estimatePath, estimateColumn)
	if err != nil {
		return nil, err
	}

	return Payload{
		"truth":          truth,
		"pointEstimates": map[string][]float64{algo: estimate},
	}, nil
}

// multiDatasetExtractor merges the payloads of already-defined datasets into
// one, keying each point estimate by the dataset it came from. The truth is
// taken from the first dataset.
type multiDatasetExtractor struct{}

func (e *multiDatasetExtractor) Name() string { return "MultiDatasetExtractor" }

func (e *multiDatasetExtractor) Inputs() map[string]InputKind {
	return map[string]InputKind{
		"datasets": KindDatasetList,
	}
}

func (e *multiDatasetExtractor) Extract(inputs Payload) (Payload, error) {
	if err := ValidateInputs("extractor MultiDatasetExtractor", e.Inputs(), inputs); err != nil {
		return nil, err
	}
	datasets := inputs["datasets"].([]*DatasetHolder)
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no datasets provided to MultiDatasetExtractor")
	}

	var truth []float64
	merged := map[string][]float64{}
	for _, dataset := range datasets {
		data, err := dataset.Payload()
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", dataset.Name, err)
		}
		if err := ValidateInputs(fmt.Sprintf("dataset %q", dataset.Name), pointEstimateInputs(), data); err != nil {
			return nil, err
		}
		subTruth, subEstimates := pointEstimatePayload(data)
		if truth == nil {
			truth = subTruth
		}
		for _, key := range estimateKeys(subEstimates) {
			mergedKey := dataset.Name
			if len(subEstimates) > 1 {
				mergedKey = dataset.Name + "_" + key
			}
			merged[mergedKey] = subEstimates[key]
		}
	}

	return Payload{"truth": truth, "pointEstimates": merged}, nil
}

// readColumn loads one numeric column from a CSV file.
func readColumn(path, column string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	idx := -1
	for i, name := range rows[0] {
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in %s, have %v", column, path, rows[0])
	}

	out := make([]float64, 0, len(rows)-1)
	for i, row := range rows[1:] {
		val, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d column %q: %w", path, i+1, column, err)
		}
		out = append(out, val)
	}
	return out, nil
}
