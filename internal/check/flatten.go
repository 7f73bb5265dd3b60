package check

import (
	"math"

	"github.com/gpumon/check-gpu/internal/gpu"
)

// PerfRecord is the flattened numeric view of a snapshot: sensor name to
// current value. Monitoring systems graph these as performance data.
type PerfRecord map[string]float64

// Flatten walks a snapshot and collects every numeric leaf into a
// PerfRecord. Float values are rounded to two decimal places; text and
// unavailable readings never enter the record. A non-empty filter limits
// the walk to matching top-level keys; once a nested mapping is entered
// all of its keys are visited unfiltered.
func Flatten(snap gpu.Snapshot, filter []string) PerfRecord {
	record := make(PerfRecord)

	var allowed map[string]struct{}
	if len(filter) > 0 {
		allowed = make(map[string]struct{}, len(filter))
		for _, name := range filter {
			allowed[name] = struct{}{}
		}
	}

	for name, value := range snap {
		if allowed != nil {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		flattenInto(record, name, value)
	}
	return record
}

func flattenInto(record PerfRecord, name string, value gpu.Value) {
	if gpu.Excluded(name) {
		return
	}
	switch value.Kind() {
	case gpu.KindNumber:
		record[name] = round2(value.Float())
	case gpu.KindNested:
		for child, childValue := range value.Nested() {
			flattenInto(record, child, childValue)
		}
	}
	// Text and unavailable readings are not performance data.
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
