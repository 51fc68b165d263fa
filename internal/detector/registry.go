package detector

import (
	"maps"
	"slices"
	"sync"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/spectral"
)

// Detector is one attached analysis script. Run is called once per frame, in row order,
// on the producer goroutine; a returned error or a panic disables the detector.
type Detector interface {
	Run(row int64, frame *spectral.Frame) error
}

// Params are numeric detector settings keyed by name
type Params map[string]float64

// Get returns p[key] or def when it is absent
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Factory builds a detector bound to api. params already have the kind's defaults
// merged in.
type Factory func(api *API, params Params) (Detector, error)

type registration struct {
	defaults Params
	factory  Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a detector kind available to Attach. defaults lists every parameter the
// kind accepts.
func Register(kind string, defaults Params, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = registration{defaults: defaults, factory: factory}
}

// Kinds lists the registered detector kinds
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// Defaults returns a copy of the default parameters of kind
func Defaults(kind string) (Params, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[kind]
	if !ok {
		return nil, false
	}
	return maps.Clone(r.defaults), true
}

func lookup(kind string) (registration, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[kind]
	if !ok {
		return registration{}, errors.Newf("unknown detector kind %q", kind).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Context("known", slices.Sorted(maps.Keys(registry))).
			Build()
	}
	return r, nil
}

// resolve merges overrides into defaults and rejects keys the kind does not know
func resolve(kind string, defaults, overrides Params) (Params, error) {
	out := maps.Clone(defaults)
	if out == nil {
		out = make(Params)
	}
	var unknown []string
	for k, v := range overrides {
		if _, ok := defaults[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		out[k] = v
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, errors.Newf("detector kind %q has no parameters %v", kind, unknown).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return out, nil
}
