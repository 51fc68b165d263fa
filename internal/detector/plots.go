package detector

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// SeriesKind tells the renderer how to place a series
type SeriesKind int

const (
	// SeriesValue is a free-valued trace drawn in its own strip
	SeriesValue SeriesKind = iota
	// SeriesBin is a frequency trace in [-1, 1] drawn over the waterfall
	SeriesBin
)

// Series is a fixed circular array of samples indexed by row mod capacity.
//
// The producer goroutine writes and the render loop reads without a lock. Each element is
// a float64 held in an atomic word, so a reader never sees a torn value, but a read that
// races the write edge may mix samples from the current and the previous lap.
type Series struct {
	name string
	kind SeriesKind
	data []atomic.Uint64
}

func newSeries(name string, kind SeriesKind, capacity int) *Series {
	s := &Series{name: name, kind: kind, data: make([]atomic.Uint64, max(capacity, 1))}
	zero := math.Float64bits(0)
	for i := range s.data {
		s.data[i].Store(zero)
	}
	return s
}

// Name is the plot name given by the detector
func (s *Series) Name() string { return s.name }

// Kind is the series kind
func (s *Series) Kind() SeriesKind { return s.kind }

// Capacity is the number of rows retained
func (s *Series) Capacity() int { return len(s.data) }

func (s *Series) slot(row int64) int {
	n := int64(len(s.data))
	return int(((row % n) + n) % n)
}

// Set stores v for row
func (s *Series) Set(row int64, v float64) {
	s.data[s.slot(row)].Store(math.Float64bits(v))
}

// At returns the sample stored for row, or for the row a multiple of Capacity away
func (s *Series) At(row int64) float64 {
	return math.Float64frombits(s.data[s.slot(row)].Load())
}

// Window copies the n samples ending at newest into dst, oldest first
func (s *Series) Window(newest int64, n int, dst []float64) []float64 {
	n = min(n, len(s.data))
	dst = dst[:0]
	for row := newest - int64(n) + 1; row <= newest; row++ {
		dst = append(dst, s.At(row))
	}
	return dst
}

// plotSet holds one detector's series; creation is locked, sample writes are not
type plotSet struct {
	capacity int

	mu     sync.RWMutex
	series map[string]*Series
}

func newPlotSet(capacity int) *plotSet {
	return &plotSet{capacity: capacity, series: make(map[string]*Series)}
}

func (p *plotSet) get(name string, kind SeriesKind) *Series {
	p.mu.RLock()
	s, ok := p.series[name]
	p.mu.RUnlock()
	if ok {
		return s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.series[name]; ok {
		return s
	}
	s = newSeries(name, kind, p.capacity)
	p.series[name] = s
	return s
}

func (p *plotSet) list() []*Series {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Series, 0, len(p.series))
	for _, s := range p.series {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
