package library

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/params"
)

// Subsampler takes a set of input files and writes a single output file
// holding a subset of their rows.
type Subsampler interface {
	// Name reports the configured name of this subsampler.
	Name() string
	// Subsample reads all input files and writes the chosen rows to output.
	Subsample(inputs []string, output string) error
}

// SubsamplerConstructor builds a subsampler from a resolved configuration block.
type SubsamplerConstructor func(raw map[string]any) (Subsampler, error)

var subsamplerClasses = map[string]SubsamplerConstructor{
	"RandomSubsampler": newRandomSubsampler,
}

// NewSubsampler builds a subsampler of the named class.
func NewSubsampler(class string, raw map[string]any) (Subsampler, error) {
	ctor, ok := subsamplerClasses[class]
	if !ok {
		return nil, fmt.Errorf("unknown subsampler class %q", class)
	}
	return ctor(raw)
}

// randomSubsampler draws rows uniformly without replacement using a
// seeded generator, so repeated runs pick the same rows.
type randomSubsampler struct {
	name       string
	seed       uint64
	numObjects int
}

var subsamplerSchema = params.Base("Subsampler Name").Extend(
	params.Option{Name: "seed", Kind: params.KindInt, Default: 1234, Help: "Random number seed"},
	params.Option{Name: "num_objects", Kind: params.KindInt, Required: true, Help: "Number of output objects"},
)

func newRandomSubsampler(raw map[string]any) (Subsampler, error) {
	resolved, err := subsamplerSchema.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("Subsampler: %w", err)
	}
	return &randomSubsampler{
		name:       resolved["name"].(string),
		seed:       uint64(resolved["seed"].(int)),
		numObjects: resolved["num_objects"].(int),
	}, nil
}

func (s *randomSubsampler) Name() string { return s.name }

func (s *randomSubsampler) Subsample(inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("subsampler %q: no input files", s.name)
	}
	var header []string
	var rows [][]string
	for _, in := range inputs {
		h, r, err := readTable(in)
		if err != nil {
			return err
		}
		if header == nil {
			header = h
		} else if len(h) != len(header) {
			return fmt.Errorf("subsampler %q: %s has %d columns, expected %d", s.name, in, len(h), len(header))
		}
		rows = append(rows, r...)
	}

	size := min(s.numObjects, len(rows))
	src := rand.NewPCG(s.seed, s.seed)
	indices := make([]int, size)
	sampleuv.WithoutReplacement(indices, len(rows), src)

	picked := make([][]string, size)
	for i, idx := range indices {
		picked[i] = rows[idx]
	}

	log.Info(log.CatLibrary, "subsampled catalog",
		"subsampler", s.name, "inputs", len(inputs), "output", output,
		"in_rows", len(rows), "out_rows", size)
	return writeTable(output, header, picked)
}
