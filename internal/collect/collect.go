package collect

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/gpumon/check-gpu/internal/gpu"
)

// Throttle reason bits as defined by the NVML clocks-throttle bitmask.
const (
	reasonBitGPUIdle          uint64 = 0x1
	reasonBitAppClocksSetting uint64 = 0x2
	reasonBitSWPowerCap       uint64 = 0x4
	reasonBitHWSlowdown       uint64 = 0x8
	reasonBitSyncBoost        uint64 = 0x10
	reasonBitSWThermal        uint64 = 0x20
	reasonBitHWThermal        uint64 = 0x40
	reasonBitHWPowerBrake     uint64 = 0x80
	reasonBitDisplayClocks    uint64 = 0x100
	reasonBitUnknown          uint64 = 0x8000000000000000
)

var throttleReasonTable = []struct {
	bit  uint64
	name string
}{
	{reasonBitGPUIdle, gpu.ReasonGPUIdle},
	{reasonBitAppClocksSetting, gpu.ReasonAppClocksSetting},
	{reasonBitSWPowerCap, gpu.ReasonSWPowerCap},
	{reasonBitHWSlowdown, gpu.ReasonHWSlowdown},
	{reasonBitSyncBoost, gpu.ReasonSyncBoost},
	{reasonBitSWThermal, gpu.ReasonSWThermal},
	{reasonBitHWThermal, gpu.ReasonHWThermal},
	{reasonBitHWPowerBrake, gpu.ReasonHWPowerBrake},
	{reasonBitDisplayClocks, gpu.ReasonDisplayClocks},
	{reasonBitUnknown, gpu.ReasonUnknown},
}

var eccLocations = []struct {
	location nvml.MemoryLocation
	single   string
	double   string
}{
	{nvml.MEMORY_LOCATION_DEVICE_MEMORY, gpu.SensorECCMemAggSgl, gpu.SensorECCMemAggDbl},
	{nvml.MEMORY_LOCATION_L1_CACHE, gpu.SensorECCL1AggSgl, gpu.SensorECCL1AggDbl},
	{nvml.MEMORY_LOCATION_L2_CACHE, gpu.SensorECCL2AggSgl, gpu.SensorECCL2AggDbl},
	{nvml.MEMORY_LOCATION_REGISTER_FILE, gpu.SensorECCRegAggSgl, gpu.SensorECCRegAggDbl},
	{nvml.MEMORY_LOCATION_TEXTURE_MEMORY, gpu.SensorECCTexAggSgl, gpu.SensorECCTexAggDbl},
}

// Collect queries every attribute the checker knows about and builds the
// device snapshot. Failed queries degrade to "N/A" or error text; nothing
// here is fatal. The selector string identifies the device in the
// bookkeeping keys.
func Collect(dev Device, selector string, logger *slog.Logger) gpu.Snapshot {
	if logger == nil {
		logger = slog.Default()
	}

	snap := gpu.Snapshot{
		gpu.SensorDeviceID: gpu.Text(selector),
	}

	snap[gpu.SensorProductName] = productName(dev)

	temp, ret := dev.Temperature()
	snap[gpu.SensorTemperature] = numberValue(float64(temp), ret, logger, gpu.SensorTemperature)

	fan, ret := dev.FanSpeed()
	snap[gpu.SensorFanSpeed] = numberValue(float64(fan), ret, logger, gpu.SensorFanSpeed)

	snap[gpu.SensorUsedMemory] = usedMemory(dev, logger)

	// NVML reports power in milliwatts.
	power, ret := dev.PowerUsage()
	snap[gpu.SensorPowerUsage] = numberValue(float64(power)/1000, ret, logger, gpu.SensorPowerUsage)

	snap[gpu.SensorPersistence] = persistenceMode(dev)
	snap[gpu.SensorInforomValid] = inforomValidation(dev)
	snap[gpu.SensorComputeMode] = computeMode(dev)
	snap[gpu.SensorThrottleReasons] = throttleReasons(dev)

	snap[gpu.SensorClockInfo] = gpu.Nested(gpu.Snapshot{
		gpu.SensorGraphicsClock: clockValue(dev, nvml.CLOCK_GRAPHICS, logger),
		gpu.SensorSMClock:       clockValue(dev, nvml.CLOCK_SM, logger),
		gpu.SensorMemClock:      clockValue(dev, nvml.CLOCK_MEM, logger),
	})

	snap[gpu.SensorECCCounts] = gpu.Nested(eccCounts(dev, logger))
	snap[gpu.SensorPCIeLink] = gpu.Nested(pcieLink(dev, logger))

	if info, ret := dev.PCIInfo(); ret == nvml.SUCCESS {
		snap[gpu.SensorPCIBusID] = gpu.Text(formatBusID(info))
	} else {
		snap[gpu.SensorPCIBusID] = gpu.Unavailable()
	}

	return snap
}

// ProductName extracts the display name from a snapshot, falling back to a
// placeholder when the device never reported one.
func ProductName(snap gpu.Snapshot) string {
	if v, ok := snap[gpu.SensorProductName]; ok && v.Kind() == gpu.KindText {
		return v.Text()
	}
	return "Unknown GPU"
}

func productName(dev Device) gpu.Value {
	name, ret := dev.Name()
	if ret == nvml.SUCCESS {
		return gpu.Text(name)
	}
	if resolved := pciProductName(dev); resolved != "" {
		return gpu.Text(resolved)
	}
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return gpu.Unavailable()
	}
	return gpu.Text(nvml.ErrorString(ret))
}

func pciProductName(dev Device) string {
	info, ret := dev.PCIInfo()
	if ret != nvml.SUCCESS {
		return ""
	}
	return lookupProductName(
		fmt.Sprintf("%04x", info.PciDeviceId&0xffff),
		fmt.Sprintf("%04x", info.PciDeviceId>>16),
		fmt.Sprintf("%04x", info.PciSubSystemId&0xffff),
		fmt.Sprintf("%04x", info.PciSubSystemId>>16),
	)
}

func usedMemory(dev Device, logger *slog.Logger) gpu.Value {
	mem, ret := dev.MemoryInfo()
	if ret != nvml.SUCCESS {
		return failureValue(ret, logger, gpu.SensorUsedMemory)
	}
	if mem.Total == 0 {
		logger.Debug("memory info reported zero total", "sensor", gpu.SensorUsedMemory)
		return gpu.Unavailable()
	}
	return gpu.Number(float64(mem.Used) / float64(mem.Total) * 100)
}

func persistenceMode(dev Device) gpu.Value {
	mode, ret := dev.PersistenceMode()
	if ret == nvml.SUCCESS {
		if mode == nvml.FEATURE_ENABLED {
			return gpu.Text("enabled")
		}
		return gpu.Text("disabled")
	}
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return gpu.Unavailable()
	}
	return gpu.Text(nvml.ErrorString(ret))
}

func inforomValidation(dev Device) gpu.Value {
	switch ret := dev.InforomValidation(); ret {
	case nvml.SUCCESS:
		return gpu.Text("valid")
	case nvml.ERROR_NOT_SUPPORTED:
		return gpu.Unavailable()
	default:
		// The validation call failing is the signal that the inforom is
		// not intact; the error text flows into the discrete check.
		return gpu.Text(nvml.ErrorString(ret))
	}
}

func computeMode(dev Device) gpu.Value {
	mode, ret := dev.ComputeMode()
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return gpu.Unavailable()
	}
	if ret != nvml.SUCCESS {
		return gpu.Text(nvml.ErrorString(ret))
	}
	switch mode {
	case nvml.COMPUTEMODE_DEFAULT:
		return gpu.Text("Default")
	case nvml.COMPUTEMODE_EXCLUSIVE_THREAD:
		return gpu.Text("ExclusiveThread")
	case nvml.COMPUTEMODE_PROHIBITED:
		return gpu.Text("Prohibited")
	case nvml.COMPUTEMODE_EXCLUSIVE_PROCESS:
		return gpu.Text("ExclusiveProcess")
	default:
		return gpu.Text(fmt.Sprintf("Unknown (%d)", mode))
	}
}

func throttleReasons(dev Device) gpu.Value {
	mask, ret := dev.ThrottleReasons()
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return gpu.Unavailable()
	}
	if ret != nvml.SUCCESS {
		return gpu.Text(nvml.ErrorString(ret))
	}
	return gpu.Text(decodeThrottleReasons(mask))
}

// decodeThrottleReasons renders the active bits of the throttle bitmask as
// a comma-joined list of reason names.
func decodeThrottleReasons(mask uint64) string {
	if mask == 0 {
		return gpu.ReasonNone
	}
	var names []string
	for _, entry := range throttleReasonTable {
		if mask&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	if len(names) == 0 {
		// Bits set that the fixed table does not know about.
		return gpu.ReasonUnknown
	}
	return strings.Join(names, ", ")
}

func clockValue(dev Device, clock nvml.ClockType, logger *slog.Logger) gpu.Value {
	value, ret := dev.ClockInfo(clock)
	return numberValue(float64(value), ret, logger, fmt.Sprintf("clock %d", clock))
}

func eccCounts(dev Device, logger *slog.Logger) gpu.Snapshot {
	counts := make(gpu.Snapshot, len(eccLocations)*2)
	for _, loc := range eccLocations {
		single, ret := dev.ECCCounter(loc.location, nvml.MEMORY_ERROR_TYPE_CORRECTED)
		counts[loc.single] = numberValue(float64(single), ret, logger, loc.single)

		double, ret := dev.ECCCounter(loc.location, nvml.MEMORY_ERROR_TYPE_UNCORRECTED)
		counts[loc.double] = numberValue(float64(double), ret, logger, loc.double)
	}
	return counts
}

func pcieLink(dev Device, logger *slog.Logger) gpu.Snapshot {
	link := make(gpu.Snapshot, 2)
	gen, ret := dev.PCIeLinkGeneration()
	link[gpu.SensorPCIeLinkGen] = numberValue(float64(gen), ret, logger, gpu.SensorPCIeLinkGen)
	width, ret := dev.PCIeLinkWidth()
	link[gpu.SensorPCIeLinkWidth] = numberValue(float64(width), ret, logger, gpu.SensorPCIeLinkWidth)
	return link
}

func numberValue(value float64, ret nvml.Return, logger *slog.Logger, sensor string) gpu.Value {
	if ret == nvml.SUCCESS {
		return gpu.Number(value)
	}
	return failureValue(ret, logger, sensor)
}

func failureValue(ret nvml.Return, logger *slog.Logger, sensor string) gpu.Value {
	if ret == nvml.ERROR_NOT_SUPPORTED {
		logger.Debug("attribute not supported", "sensor", sensor)
		return gpu.Unavailable()
	}
	logger.Debug("attribute query failed", "sensor", sensor, "err", nvml.ErrorString(ret))
	return gpu.Text(nvml.ErrorString(ret))
}

func formatBusID(info nvml.PciInfo) string {
	return fmt.Sprintf("%08x:%02x:%02x.0", info.Domain, info.Bus, info.Device)
}
