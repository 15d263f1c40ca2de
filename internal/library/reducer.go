package library

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/params"
)

// Reducer takes the files of an input catalog and writes a reduced copy of
// each one, applying row-level cuts.
type Reducer interface {
	// Name reports the configured name of this reducer.
	Name() string
	// Reduce reads one input file and writes the surviving rows to output.
	Reduce(input, output string) error
}

// ReducerConstructor builds a reducer from a resolved configuration block.
type ReducerConstructor func(raw map[string]any) (Reducer, error)

var reducerClasses = map[string]ReducerConstructor{
	"RomanRubinReducer": newColumnCutReducer,
	"ColumnCutReducer":  newColumnCutReducer,
}

// NewReducer builds a reducer of the named class.
func NewReducer(class string, raw map[string]any) (Reducer, error) {
	ctor, ok := reducerClasses[class]
	if !ok {
		return nil, fmt.Errorf("unknown reducer class %q", class)
	}
	return ctor(raw)
}

// columnCutReducer keeps the rows of a tabular file whose columns fall
// inside the configured bounds.
type columnCutReducer struct {
	name string
	cuts map[string]any
}

var reducerSchema = params.Base("Reducer Name").Extend(
	params.Option{Name: "cuts", Kind: params.KindMap, Default: map[string]any{}, Help: "Selections"},
)

func newColumnCutReducer(raw map[string]any) (Reducer, error) {
	resolved, err := reducerSchema.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("Reducer: %w", err)
	}
	cuts, _ := resolved["cuts"].(map[string]any)
	return &columnCutReducer{
		name: resolved["name"].(string),
		cuts: cuts,
	}, nil
}

func (r *columnCutReducer) Name() string { return r.name }

func (r *columnCutReducer) Reduce(input, output string) error {
	header, rows, err := readTable(input)
	if err != nil {
		return err
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[col] = i
	}

	type boundedCut struct {
		col    int
		lo, hi *float64
	}
	cuts := make([]boundedCut, 0, len(r.cuts))
	sel := &Selection{Name: r.name, Cuts: r.cuts}
	for col := range r.cuts {
		idx, ok := colIndex[col]
		if !ok {
			return fmt.Errorf("reducer %q: input %s has no column %q", r.name, input, col)
		}
		lo, hi, err := sel.CutBounds(col)
		if err != nil {
			return err
		}
		cuts = append(cuts, boundedCut{col: idx, lo: lo, hi: hi})
	}

	kept := make([][]string, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, c := range cuts {
			val, err := strconv.ParseFloat(row[c.col], 64)
			if err != nil {
				keep = false
				break
			}
			if c.lo != nil && val < *c.lo {
				keep = false
				break
			}
			if c.hi != nil && val > *c.hi {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, row)
		}
	}

	log.Info(log.CatLibrary, "reduced catalog file",
		"reducer", r.name, "input", input, "output", output,
		"in_rows", len(rows), "out_rows", len(kept))
	return writeTable(output, header, kept)
}

func readTable(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("reading %s: empty table", path)
	}
	return records[0], records[1:], nil
}

func writeTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}
