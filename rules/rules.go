//go:build ruleguard

// Package gorules defines custom linter rules for pysdr.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done goroutine pattern; wg.Go does both.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done").
		Suggest("$wg.Go(func() { $body })")
}

// MinMaxBuiltin flags float round trips for integer min/max.
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(
		`int(math.Min(float64($a), float64($b)))`,
		`int64(math.Min(float64($a), float64($b)))`,
	).
		Report("use min($a, $b)").
		Suggest("min($a, $b)")

	m.Match(
		`int(math.Max(float64($a), float64($b)))`,
		`int64(math.Max(float64($a), float64($b)))`,
	).
		Report("use max($a, $b)").
		Suggest("max($a, $b)")
}

// LoggerFields flags preformatted log messages; values belong in fields so the JSON
// file output stays queryable.
func LoggerFields(m dsl.Matcher) {
	m.Match(
		`$log.Trace(fmt.Sprintf($*_), $*_)`,
		`$log.Debug(fmt.Sprintf($*_), $*_)`,
		`$log.Info(fmt.Sprintf($*_), $*_)`,
		`$log.Warn(fmt.Sprintf($*_), $*_)`,
		`$log.Error(fmt.Sprintf($*_), $*_)`,
	).
		Where(m["log"].Type.Implements(`github.com/MLAB-project/pysdr/internal/logger.Logger`)).
		Report("pass values as logger fields instead of formatting the message")
}

// EnhancedErrors flags bare fmt.Errorf in the processing stages, whose errors are
// classified by component and category for metrics and telemetry.
func EnhancedErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/(spectral|canvas|framequeue|events|ingest|runtime|analysis)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("build the error with internal/errors and set its component and category")
}

// ProducerSleep flags sleeps on the sample path; the producer must never stall.
func ProducerSleep(m dsl.Matcher) {
	m.Match(`time.Sleep($_)`).
		Where(m.File().PkgPath.Matches(`/internal/(spectral|detector|framequeue|runtime)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("do not sleep on the producer path; select on a ticker or the context instead")
}

// BenchmarkLoop flags b.N loops; b.Loop keeps setup out of the timed region.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }").
		Suggest("for $b.Loop() { $body }")
}
