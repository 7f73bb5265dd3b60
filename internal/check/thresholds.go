package check

import (
	"fmt"
	"strconv"

	"github.com/gpumon/check-gpu/internal/gpu"
)

// RangeThreshold is a warning/critical pair compared with >= against the
// current reading.
type RangeThreshold struct {
	Warn float64
	Crit float64
}

// EqualityThreshold holds a single expected value; any other reading is
// critical. Used for the PCIe link sensors, which have no meaningful range.
type EqualityThreshold struct {
	Expect float64
}

// Table maps sensor names to their comparison values. Sensors absent from
// the table are reported as perfdata but never evaluated.
type Table struct {
	ranges map[string]RangeThreshold
	equals map[string]EqualityThreshold
}

// warningSlots is the positional order of the -w override list.
var warningSlots = []string{
	gpu.SensorTemperature,
	gpu.SensorUsedMemory,
	gpu.SensorFanSpeed,
	gpu.SensorECCMemAggSgl,
	gpu.SensorECCL1AggSgl,
	gpu.SensorECCL2AggSgl,
	gpu.SensorECCRegAggSgl,
	gpu.SensorECCTexAggSgl,
	gpu.SensorPowerUsage,
}

// criticalSlots is the positional order of the -c override list: the nine
// warning slots followed by the two equality sensors.
var criticalSlots = append(append([]string{}, warningSlots...),
	gpu.SensorPCIeLinkGen,
	gpu.SensorPCIeLinkWidth,
)

// DefaultPlaceholder in a positional override list keeps the built-in value.
const DefaultPlaceholder = "d"

// NewTable returns a table seeded with the built-in default thresholds.
func NewTable() *Table {
	return &Table{
		ranges: map[string]RangeThreshold{
			gpu.SensorTemperature:  {Warn: 85, Crit: 100},
			gpu.SensorUsedMemory:   {Warn: 95, Crit: 99},
			gpu.SensorFanSpeed:     {Warn: 80, Crit: 95},
			gpu.SensorECCMemAggSgl: {Warn: 1, Crit: 2},
			gpu.SensorECCL1AggSgl:  {Warn: 1, Crit: 2},
			gpu.SensorECCL2AggSgl:  {Warn: 1, Crit: 2},
			gpu.SensorECCRegAggSgl: {Warn: 1, Crit: 2},
			gpu.SensorECCTexAggSgl: {Warn: 1, Crit: 2},
			gpu.SensorPowerUsage:   {Warn: 150, Crit: 200},
		},
		equals: map[string]EqualityThreshold{
			gpu.SensorPCIeLinkGen:   {Expect: 2},
			gpu.SensorPCIeLinkWidth: {Expect: 16},
		},
	}
}

// Range looks up the warning/critical pair for a sensor.
func (t *Table) Range(name string) (RangeThreshold, bool) {
	th, ok := t.ranges[name]
	return th, ok
}

// Equality looks up the expected value for an equality sensor.
func (t *Table) Equality(name string) (EqualityThreshold, bool) {
	th, ok := t.equals[name]
	return th, ok
}

// ApplyWarningList overrides warning levels positionally. A shorter list
// leaves trailing slots at their defaults; a longer list is rejected.
func (t *Table) ApplyWarningList(values []string) error {
	if len(values) > len(warningSlots) {
		return fmt.Errorf("warning list has %d values, at most %d allowed", len(values), len(warningSlots))
	}
	for i, raw := range values {
		if raw == DefaultPlaceholder {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("warning value %d (%s): %w", i+1, warningSlots[i], err)
		}
		th := t.ranges[warningSlots[i]]
		th.Warn = value
		t.ranges[warningSlots[i]] = th
	}
	return nil
}

// ApplyCriticalList overrides critical levels positionally. Slots ten and
// eleven set the PCIe equality values.
func (t *Table) ApplyCriticalList(values []string) error {
	if len(values) > len(criticalSlots) {
		return fmt.Errorf("critical list has %d values, at most %d allowed", len(values), len(criticalSlots))
	}
	for i, raw := range values {
		if raw == DefaultPlaceholder {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("critical value %d (%s): %w", i+1, criticalSlots[i], err)
		}
		name := criticalSlots[i]
		if _, ok := t.equals[name]; ok {
			t.equals[name] = EqualityThreshold{Expect: value}
			continue
		}
		th := t.ranges[name]
		th.Crit = value
		t.ranges[name] = th
	}
	return nil
}

// ApplyNamed overrides thresholds by sensor name, as loaded from a config
// file. Range sensors take [warn, crit]; equality sensors take a single
// expected value (the last element when two are given).
func (t *Table) ApplyNamed(overrides map[string][]float64) error {
	for name, values := range overrides {
		if len(values) == 0 || len(values) > 2 {
			return fmt.Errorf("threshold %q: need 1 or 2 values, got %d", name, len(values))
		}
		if _, ok := t.equals[name]; ok {
			t.equals[name] = EqualityThreshold{Expect: values[len(values)-1]}
			continue
		}
		if _, ok := t.ranges[name]; !ok {
			return fmt.Errorf("threshold %q: unknown sensor", name)
		}
		if len(values) != 2 {
			return fmt.Errorf("threshold %q: need [warn, crit]", name)
		}
		t.ranges[name] = RangeThreshold{Warn: values[0], Crit: values[1]}
	}
	return nil
}
