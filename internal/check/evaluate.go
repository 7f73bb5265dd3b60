// Package check implements the threshold evaluation and status
// aggregation engine: it reduces a device snapshot plus a threshold table
// to one severity, the offending sensors per level, and the flattened
// performance record.
package check

import (
	"strings"

	"github.com/gpumon/check-gpu/internal/gpu"
)

// Evaluate runs one full evaluation pass: flatten the snapshot, compare
// continuous sensors against the table, then apply the fixed per-sensor
// discrete policies. The same inputs always produce the same result.
func Evaluate(snap gpu.Snapshot, table *Table, filter []string) (*Result, PerfRecord) {
	perf := Flatten(snap, filter)
	result := NewResult()
	evaluatePerf(perf, table, result)
	evaluateDiscrete(snap, table, result)
	return result, perf
}

// evaluatePerf compares every continuous sensor against its range pair.
// The critical comparison runs second so it can promote a fresh warning
// mark. Equality sensors have no range entry and are handled by the
// discrete pass.
func evaluatePerf(perf PerfRecord, table *Table, result *Result) {
	for name, value := range perf {
		th, ok := table.Range(name)
		if !ok {
			continue
		}
		if value >= th.Warn {
			result.AddWarning(name)
		}
		if value >= th.Crit {
			result.AddCritical(name)
		}
	}
}

// evaluateDiscrete applies the fixed policy rules to the status-only
// sensors. Every rule skips unavailable readings and can only raise
// severity.
func evaluateDiscrete(snap gpu.Snapshot, table *Table, result *Result) {
	checkDoubleBitECC(snap, result)

	if v, ok := snap[gpu.SensorPersistence]; ok && v.Kind() == gpu.KindText {
		if v.Text() != "enabled" {
			result.AddWarning(gpu.SensorPersistence)
		}
	}

	if v, ok := snap[gpu.SensorInforomValid]; ok && v.Kind() == gpu.KindText {
		if v.Text() != "valid" {
			result.AddCritical(gpu.SensorInforomValid)
		}
	}

	if v, ok := snap[gpu.SensorThrottleReasons]; ok && v.Kind() == gpu.KindText {
		if throttledCritically(v.Text()) {
			result.AddCritical(gpu.SensorThrottleReasons)
		}
	}

	checkPCIeLink(snap, table, result)
}

// checkDoubleBitECC walks the snapshot for aggregate double-bit counters.
// Any positive count is critical regardless of the threshold table.
func checkDoubleBitECC(snap gpu.Snapshot, result *Result) {
	for name, value := range snap {
		if gpu.Excluded(name) {
			continue
		}
		switch value.Kind() {
		case gpu.KindNested:
			checkDoubleBitECC(value.Nested(), result)
		case gpu.KindNumber:
			if strings.HasSuffix(name, gpu.DoubleBitSuffix) && value.Float() > 0 {
				result.AddCritical(name)
			}
		}
	}
}

// throttledCritically reports whether the decoded reason list contains a
// hardware slowdown or the unknown reason flag.
func throttledCritically(reasons string) bool {
	for _, reason := range strings.Split(reasons, ",") {
		switch strings.TrimSpace(reason) {
		case gpu.ReasonHWSlowdown, gpu.ReasonUnknown:
			return true
		}
	}
	return false
}

// checkPCIeLink compares the reported link generation and width against
// the configured values by exact inequality.
func checkPCIeLink(snap gpu.Snapshot, table *Table, result *Result) {
	link, ok := snap[gpu.SensorPCIeLink]
	if !ok || link.Kind() != gpu.KindNested {
		return
	}
	for name, value := range link.Nested() {
		if value.Kind() != gpu.KindNumber {
			continue
		}
		th, ok := table.Equality(name)
		if !ok {
			continue
		}
		if value.Float() != th.Expect {
			result.AddCritical(name)
		}
	}
}
