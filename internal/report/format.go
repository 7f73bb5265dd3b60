// Package report renders evaluation results into the plugin output
// grammar: a status summary line, a machine-parsable perfdata block, and
// verbosity-gated detail and debug sections.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gpumon/check-gpu/internal/check"
	"github.com/gpumon/check-gpu/internal/gpu"
)

// Options controls how much of the snapshot the report exposes.
type Options struct {
	// Verbosity selects the output tier, 0 through 3.
	Verbosity int
	// ShowUnavailable includes "N/A" sensors in the detail dump.
	ShowUnavailable bool
}

// Debug carries the extra context printed at verbosity 3.
type Debug struct {
	DriverVersion string
	NVMLVersion   string
	DeviceCount   int
	DeviceName    string
}

const (
	debugBegin = "------------ begin of debug output ------------"
	debugEnd   = "------------ end of debug output ------------"
)

// Render produces the full report for one evaluated device.
func Render(snap gpu.Snapshot, product string, result *check.Result, perf check.PerfRecord, table *check.Table, opts Options, debug *Debug) string {
	var b strings.Builder

	b.WriteString(result.Severity().String())
	b.WriteString(" - ")
	b.WriteString(product)
	b.WriteString(" ")

	for _, name := range result.CriticalSensors() {
		b.WriteString(statusEntry(snap, perf, name, check.SeverityCritical, opts.Verbosity))
	}
	for _, name := range result.WarningSensors() {
		b.WriteString(statusEntry(snap, perf, name, check.SeverityWarning, opts.Verbosity))
	}

	b.WriteString("|")
	b.WriteString(perfData(perf, table))

	if opts.Verbosity >= 2 {
		b.WriteString("\n")
		if opts.Verbosity >= 3 && debug != nil {
			b.WriteString(debugBegin)
			b.WriteString("\n")
			fmt.Fprintf(&b, "Driver version: %s\n", debug.DriverVersion)
			fmt.Fprintf(&b, "NVML version: %s\n", debug.NVMLVersion)
			fmt.Fprintf(&b, "Device count: %d\n", debug.DeviceCount)
			fmt.Fprintf(&b, "Device name: %s\n", debug.DeviceName)
		}
		b.WriteString(detailDump(snap, opts.ShowUnavailable))
		if opts.Verbosity >= 3 && debug != nil {
			b.WriteString(debugEnd)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// statusEntry renders one bracketed offender. The current value is shown
// only from verbosity 1 up.
func statusEntry(snap gpu.Snapshot, perf check.PerfRecord, name string, severity check.Severity, verbosity int) string {
	if verbosity < 1 {
		return fmt.Sprintf("[%s = %s]", name, severity)
	}
	value, ok := currentValue(snap, perf, name)
	if !ok {
		return fmt.Sprintf("[%s = %s]", name, severity)
	}
	return fmt.Sprintf("[%s = %s (%s)]", name, severity, value)
}

// currentValue resolves a sensor's display value: the perf record for
// numeric sensors, the raw snapshot text for discrete ones.
func currentValue(snap gpu.Snapshot, perf check.PerfRecord, name string) (string, bool) {
	if v, ok := perf[name]; ok {
		return formatNumber(v), true
	}
	return findText(snap, name)
}

func findText(snap gpu.Snapshot, name string) (string, bool) {
	for key, value := range snap {
		switch value.Kind() {
		case gpu.KindNested:
			if text, ok := findText(value.Nested(), name); ok {
				return text, ok
			}
		case gpu.KindText:
			if key == name {
				return value.Text(), true
			}
		case gpu.KindNumber:
			if key == name {
				return formatNumber(value.Float()), true
			}
		}
	}
	return "", false
}

// perfData renders the performance block: name=value pairs sorted
// case-insensitively, threshold suffixes where the table has an entry.
func perfData(perf check.PerfRecord, table *check.Table) string {
	names := make([]string, 0, len(perf))
	for name := range perf {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		entry := name + "=" + formatNumber(perf[name])
		if th, ok := table.Range(name); ok {
			entry += ";" + formatNumber(th.Warn) + ";" + formatNumber(th.Crit) + ";"
		} else if eq, ok := table.Equality(name); ok {
			entry += ";;" + formatNumber(eq.Expect) + ";"
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, " ")
}

// detailDump renders one dash-prefixed line per snapshot key. Nested
// mappings become a header line with indented children. A nested mapping
// whose leaves are all unavailable collapses to a single N/A line; a
// snapshot with no available reading at all collapses to a bare marker.
func detailDump(snap gpu.Snapshot, showUnavailable bool) string {
	if allUnavailable(snap) {
		if showUnavailable {
			return "-N/A\n"
		}
		return ""
	}

	var b strings.Builder
	for _, name := range sortedKeys(snap) {
		writeDetail(&b, name, snap[name], "", showUnavailable)
	}
	return b.String()
}

func writeDetail(b *strings.Builder, name string, value gpu.Value, indent string, showUnavailable bool) {
	switch value.Kind() {
	case gpu.KindNumber:
		fmt.Fprintf(b, "%s-%s: %s\n", indent, name, formatNumber(value.Float()))
	case gpu.KindText:
		fmt.Fprintf(b, "%s-%s: %s\n", indent, name, value.Text())
	case gpu.KindUnavailable:
		if showUnavailable {
			fmt.Fprintf(b, "%s-%s: N/A\n", indent, name)
		}
	case gpu.KindNested:
		nested := value.Nested()
		if allUnavailable(nested) {
			if showUnavailable {
				fmt.Fprintf(b, "%s-%s: N/A\n", indent, name)
			}
			return
		}
		fmt.Fprintf(b, "%s-%s:\n", indent, name)
		for _, child := range sortedKeys(nested) {
			writeDetail(b, child, nested[child], indent+"  ", showUnavailable)
		}
	}
}

// allUnavailable reports whether every non-excluded leaf is N/A.
func allUnavailable(snap gpu.Snapshot) bool {
	seen := false
	for name, value := range snap {
		if gpu.Excluded(name) {
			continue
		}
		seen = true
		switch value.Kind() {
		case gpu.KindUnavailable:
		case gpu.KindNested:
			if !allUnavailable(value.Nested()) {
				return false
			}
		default:
			return false
		}
	}
	return seen
}

func sortedKeys(snap gpu.Snapshot) []string {
	names := make([]string, 0, len(snap))
	for name := range snap {
		if gpu.Excluded(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
	return names
}

// formatNumber prints with the fewest digits that round-trip, so integer
// readings stay integers in the output.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
