package collect

import (
	"io"
	"log/slog"
	"testing"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/gpumon/check-gpu/internal/gpu"
)

type fakeDevice struct {
	name        string
	nameRet     nvml.Return
	temp        uint32
	tempRet     nvml.Return
	fan         uint32
	fanRet      nvml.Return
	mem         nvml.Memory
	memRet      nvml.Return
	power       uint32
	powerRet    nvml.Return
	persistence nvml.EnableState
	persistRet  nvml.Return
	inforomRet  nvml.Return
	clocks      map[nvml.ClockType]uint32
	clockRet    nvml.Return
	eccSingle   uint64
	eccDouble   uint64
	eccRet      nvml.Return
	gen         int
	genRet      nvml.Return
	width       int
	widthRet    nvml.Return
	throttle    uint64
	throttleRet nvml.Return
	compute     nvml.ComputeMode
	computeRet  nvml.Return
	pci         nvml.PciInfo
	pciRet      nvml.Return
}

func (d *fakeDevice) Name() (string, nvml.Return)        { return d.name, d.nameRet }
func (d *fakeDevice) Temperature() (uint32, nvml.Return) { return d.temp, d.tempRet }
func (d *fakeDevice) FanSpeed() (uint32, nvml.Return)    { return d.fan, d.fanRet }
func (d *fakeDevice) MemoryInfo() (nvml.Memory, nvml.Return) {
	return d.mem, d.memRet
}
func (d *fakeDevice) PowerUsage() (uint32, nvml.Return) { return d.power, d.powerRet }
func (d *fakeDevice) PersistenceMode() (nvml.EnableState, nvml.Return) {
	return d.persistence, d.persistRet
}
func (d *fakeDevice) InforomValidation() nvml.Return { return d.inforomRet }
func (d *fakeDevice) ClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	return d.clocks[clock], d.clockRet
}
func (d *fakeDevice) ECCCounter(_ nvml.MemoryLocation, errorType nvml.MemoryErrorType) (uint64, nvml.Return) {
	if errorType == nvml.MEMORY_ERROR_TYPE_UNCORRECTED {
		return d.eccDouble, d.eccRet
	}
	return d.eccSingle, d.eccRet
}
func (d *fakeDevice) PCIeLinkGeneration() (int, nvml.Return) { return d.gen, d.genRet }
func (d *fakeDevice) PCIeLinkWidth() (int, nvml.Return)      { return d.width, d.widthRet }
func (d *fakeDevice) ThrottleReasons() (uint64, nvml.Return) {
	return d.throttle, d.throttleRet
}
func (d *fakeDevice) ComputeMode() (nvml.ComputeMode, nvml.Return) {
	return d.compute, d.computeRet
}
func (d *fakeDevice) PCIInfo() (nvml.PciInfo, nvml.Return) { return d.pci, d.pciRet }

func healthyFake() *fakeDevice {
	return &fakeDevice{
		name:        "Tesla K80",
		temp:        64,
		fan:         35,
		mem:         nvml.Memory{Used: 1 << 30, Total: 4 << 30, Free: 3 << 30},
		power:       142500,
		persistence: nvml.FEATURE_ENABLED,
		clocks: map[nvml.ClockType]uint32{
			nvml.CLOCK_GRAPHICS: 875,
			nvml.CLOCK_SM:       875,
			nvml.CLOCK_MEM:      2505,
		},
		gen:     2,
		width:   16,
		compute: nvml.COMPUTEMODE_DEFAULT,
		pci:     nvml.PciInfo{Domain: 0, Bus: 1, Device: 0},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollectHealthyDevice(t *testing.T) {
	snap := Collect(healthyFake(), "0", testLogger())

	assertNumber(t, snap, gpu.SensorTemperature, 64)
	assertNumber(t, snap, gpu.SensorFanSpeed, 35)
	assertNumber(t, snap, gpu.SensorUsedMemory, 25)
	// Milliwatts converted to watts.
	assertNumber(t, snap, gpu.SensorPowerUsage, 142.5)
	assertText(t, snap, gpu.SensorProductName, "Tesla K80")
	assertText(t, snap, gpu.SensorPersistence, "enabled")
	assertText(t, snap, gpu.SensorInforomValid, "valid")
	assertText(t, snap, gpu.SensorComputeMode, "Default")
	assertText(t, snap, gpu.SensorThrottleReasons, gpu.ReasonNone)
	assertText(t, snap, gpu.SensorDeviceID, "0")
	assertText(t, snap, gpu.SensorPCIBusID, "00000000:01:00.0")

	clocks := snap[gpu.SensorClockInfo].Nested()
	assertNumber(t, clocks, gpu.SensorGraphicsClock, 875)
	assertNumber(t, clocks, gpu.SensorMemClock, 2505)

	link := snap[gpu.SensorPCIeLink].Nested()
	assertNumber(t, link, gpu.SensorPCIeLinkGen, 2)
	assertNumber(t, link, gpu.SensorPCIeLinkWidth, 16)

	ecc := snap[gpu.SensorECCCounts].Nested()
	for _, name := range []string{
		gpu.SensorECCMemAggSgl, gpu.SensorECCL1AggSgl, gpu.SensorECCL2AggSgl,
		gpu.SensorECCRegAggSgl, gpu.SensorECCTexAggSgl,
		gpu.SensorECCMemAggDbl, gpu.SensorECCL1AggDbl, gpu.SensorECCL2AggDbl,
		gpu.SensorECCRegAggDbl, gpu.SensorECCTexAggDbl,
	} {
		assertNumber(t, ecc, name, 0)
	}
}

func TestCollectUnsupportedBecomesUnavailable(t *testing.T) {
	dev := healthyFake()
	dev.fanRet = nvml.ERROR_NOT_SUPPORTED
	dev.eccRet = nvml.ERROR_NOT_SUPPORTED
	dev.inforomRet = nvml.ERROR_NOT_SUPPORTED

	snap := Collect(dev, "0", testLogger())

	if !snap[gpu.SensorFanSpeed].IsUnavailable() {
		t.Fatalf("unsupported fan speed should be N/A")
	}
	if !snap[gpu.SensorInforomValid].IsUnavailable() {
		t.Fatalf("unsupported inforom validation should be N/A")
	}
	ecc := snap[gpu.SensorECCCounts].Nested()
	if !ecc[gpu.SensorECCMemAggDbl].IsUnavailable() {
		t.Fatalf("unsupported ECC counter should be N/A")
	}
}

func TestCollectErrorBecomesText(t *testing.T) {
	dev := healthyFake()
	dev.tempRet = nvml.ERROR_UNKNOWN

	snap := Collect(dev, "0", testLogger())

	value := snap[gpu.SensorTemperature]
	if value.Kind() != gpu.KindText {
		t.Fatalf("failed query should record error text, got kind %v", value.Kind())
	}
	if value.Text() != nvml.ErrorString(nvml.ERROR_UNKNOWN) {
		t.Fatalf("error text = %q, want %q", value.Text(), nvml.ErrorString(nvml.ERROR_UNKNOWN))
	}
}

func TestCollectNameFailureWithoutPCIFallback(t *testing.T) {
	dev := healthyFake()
	dev.nameRet = nvml.ERROR_NOT_SUPPORTED
	dev.pciRet = nvml.ERROR_UNKNOWN

	snap := Collect(dev, "0", testLogger())

	if !snap[gpu.SensorProductName].IsUnavailable() {
		t.Fatalf("product name should be N/A when NVML and PCI lookup both fail")
	}
	if ProductName(snap) != "Unknown GPU" {
		t.Fatalf("ProductName fallback = %q", ProductName(snap))
	}
}

func TestCollectThrottleReasonDecoding(t *testing.T) {
	testCases := []struct {
		name string
		mask uint64
		want string
	}{
		{"NoBits", 0, gpu.ReasonNone},
		{"SingleBit", reasonBitGPUIdle, gpu.ReasonGPUIdle},
		{"MultipleBits", reasonBitGPUIdle | reasonBitSWPowerCap, "GpuIdle, SwPowerCap"},
		{"HardwareSlowdown", reasonBitHWSlowdown, gpu.ReasonHWSlowdown},
		{"UnknownBit", reasonBitUnknown, gpu.ReasonUnknown},
		{"UnmappedBit", 0x400, gpu.ReasonUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := decodeThrottleReasons(tc.mask); got != tc.want {
				t.Fatalf("decodeThrottleReasons(%#x) = %q, want %q", tc.mask, got, tc.want)
			}
		})
	}
}

func TestCollectMemoryTotalZero(t *testing.T) {
	dev := healthyFake()
	dev.mem = nvml.Memory{}

	snap := Collect(dev, "0", testLogger())

	if !snap[gpu.SensorUsedMemory].IsUnavailable() {
		t.Fatalf("zero-total memory info should record N/A")
	}
}

func assertNumber(t *testing.T, snap gpu.Snapshot, name string, want float64) {
	t.Helper()
	value, ok := snap[name]
	if !ok {
		t.Fatalf("sensor %s missing from snapshot", name)
	}
	if value.Kind() != gpu.KindNumber {
		t.Fatalf("sensor %s kind = %v, want number", name, value.Kind())
	}
	if value.Float() != want {
		t.Fatalf("sensor %s = %v, want %v", name, value.Float(), want)
	}
}

func assertText(t *testing.T, snap gpu.Snapshot, name, want string) {
	t.Helper()
	value, ok := snap[name]
	if !ok {
		t.Fatalf("sensor %s missing from snapshot", name)
	}
	if value.Kind() != gpu.KindText {
		t.Fatalf("sensor %s kind = %v, want text", name, value.Kind())
	}
	if value.Text() != want {
		t.Fatalf("sensor %s = %q, want %q", name, value.Text(), want)
	}
}
