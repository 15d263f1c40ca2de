// Package library holds the named configuration entities of an analysis
// project: catalog, file and pipeline templates, selections, subsamples and
// algorithm holders, together with the factories that load them from YAML
// documents and the Library aggregate that owns all factories for one
// configuration scope.
//
// A Library is an explicit value passed to whatever needs entity lookup.
// There are no package-level singletons; tests and independent configuration
// loads construct their own Library (or call Clear between loads).
package library
