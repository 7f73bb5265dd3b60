package check

import (
	"testing"

	"github.com/gpumon/check-gpu/internal/gpu"
)

func TestFlatten(t *testing.T) {
	snap := gpu.Snapshot{
		gpu.SensorTemperature: gpu.Number(65),
		gpu.SensorUsedMemory:  gpu.Number(42.123456),
		gpu.SensorPersistence: gpu.Text("enabled"),
		gpu.SensorFanSpeed:    gpu.Unavailable(),
		gpu.SensorClockInfo: gpu.Nested(gpu.Snapshot{
			gpu.SensorGraphicsClock: gpu.Number(1410),
			gpu.SensorMemClock:      gpu.Unavailable(),
		}),
		gpu.SensorDeviceID: gpu.Text("0"),
	}

	perf := Flatten(snap, nil)

	if len(perf) != 3 {
		t.Fatalf("expected 3 perf entries, got %d: %v", len(perf), perf)
	}
	if perf[gpu.SensorTemperature] != 65 {
		t.Fatalf("temperature = %v, want 65", perf[gpu.SensorTemperature])
	}
	if perf[gpu.SensorUsedMemory] != 42.12 {
		t.Fatalf("usedMemory = %v, want rounded 42.12", perf[gpu.SensorUsedMemory])
	}
	if perf[gpu.SensorGraphicsClock] != 1410 {
		t.Fatalf("graphicsClock = %v, want 1410", perf[gpu.SensorGraphicsClock])
	}
	if _, ok := perf[gpu.SensorPersistence]; ok {
		t.Fatalf("text sensor must not enter the perf record")
	}
	if _, ok := perf[gpu.SensorFanSpeed]; ok {
		t.Fatalf("unavailable sensor must not enter the perf record")
	}
	if _, ok := perf[gpu.SensorDeviceID]; ok {
		t.Fatalf("excluded key must not enter the perf record")
	}
}

func TestFlattenFilterAppliesToTopLevelOnly(t *testing.T) {
	snap := gpu.Snapshot{
		gpu.SensorTemperature: gpu.Number(65),
		gpu.SensorPowerUsage:  gpu.Number(120),
		gpu.SensorClockInfo: gpu.Nested(gpu.Snapshot{
			gpu.SensorGraphicsClock: gpu.Number(1410),
			gpu.SensorSMClock:       gpu.Number(1410),
		}),
	}

	perf := Flatten(snap, []string{gpu.SensorTemperature, gpu.SensorClockInfo})

	if _, ok := perf[gpu.SensorPowerUsage]; ok {
		t.Fatalf("filtered-out top-level sensor present: %v", perf)
	}
	if perf[gpu.SensorTemperature] != 65 {
		t.Fatalf("filter dropped a selected sensor: %v", perf)
	}
	// Nested keys are never filtered individually once the mapping is
	// entered.
	if perf[gpu.SensorGraphicsClock] != 1410 || perf[gpu.SensorSMClock] != 1410 {
		t.Fatalf("nested keys missing despite selected parent: %v", perf)
	}
}

func TestFlattenExcludesBookkeepingInsideNested(t *testing.T) {
	snap := gpu.Snapshot{
		"outer": gpu.Nested(gpu.Snapshot{
			gpu.SensorPCIBusID: gpu.Number(1),
			"inner":            gpu.Number(2),
		}),
	}

	perf := Flatten(snap, nil)
	if _, ok := perf[gpu.SensorPCIBusID]; ok {
		t.Fatalf("excluded key leaked through nested flatten")
	}
	if perf["inner"] != 2 {
		t.Fatalf("nested numeric leaf missing: %v", perf)
	}
}
