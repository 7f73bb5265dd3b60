// Package collect queries a GPU's management telemetry through NVML and
// assembles the device snapshot the checker consumes. Individual attribute
// failures never abort collection: unsupported queries become "N/A", other
// failures become their NVML error text.
package collect

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Library is the process-wide handle to the management layer. It must be
// initialized before any device query and shut down on every exit path.
type Library interface {
	Init() error
	Shutdown() error
	DeviceCount() (int, error)
	DeviceByIndex(index int) (Device, error)
	DeviceByBusID(busID string) (Device, error)
	DriverVersion() (string, error)
	NVMLVersion() (string, error)
}

// Device exposes the per-device attribute queries the collector needs.
// Methods return the raw NVML status so callers can distinguish
// unsupported attributes from real failures.
type Device interface {
	Name() (string, nvml.Return)
	Temperature() (uint32, nvml.Return)
	FanSpeed() (uint32, nvml.Return)
	MemoryInfo() (nvml.Memory, nvml.Return)
	PowerUsage() (uint32, nvml.Return)
	PersistenceMode() (nvml.EnableState, nvml.Return)
	InforomValidation() nvml.Return
	ClockInfo(clock nvml.ClockType) (uint32, nvml.Return)
	ECCCounter(location nvml.MemoryLocation, errorType nvml.MemoryErrorType) (uint64, nvml.Return)
	PCIeLinkGeneration() (int, nvml.Return)
	PCIeLinkWidth() (int, nvml.Return)
	ThrottleReasons() (uint64, nvml.Return)
	ComputeMode() (nvml.ComputeMode, nvml.Return)
	PCIInfo() (nvml.PciInfo, nvml.Return)
}

// NewLibrary returns the real NVML-backed library.
func NewLibrary() Library { return nvmlLibrary{} }

type nvmlLibrary struct{}

func (nvmlLibrary) Init() error {
	return retErr("nvml init", nvml.Init())
}

func (nvmlLibrary) Shutdown() error {
	return retErr("nvml shutdown", nvml.Shutdown())
}

func (nvmlLibrary) DeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, retErr("device count", ret)
	}
	return count, nil
}

func (nvmlLibrary) DeviceByIndex(index int) (Device, error) {
	dev, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, retErr(fmt.Sprintf("device %d", index), ret)
	}
	return nvmlDevice{dev: dev}, nil
}

func (nvmlLibrary) DeviceByBusID(busID string) (Device, error) {
	dev, ret := nvml.DeviceGetHandleByPciBusId(busID)
	if ret != nvml.SUCCESS {
		return nil, retErr(fmt.Sprintf("device %s", busID), ret)
	}
	return nvmlDevice{dev: dev}, nil
}

func (nvmlLibrary) DriverVersion() (string, error) {
	version, ret := nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return "", retErr("driver version", ret)
	}
	return version, nil
}

func (nvmlLibrary) NVMLVersion() (string, error) {
	version, ret := nvml.SystemGetNVMLVersion()
	if ret != nvml.SUCCESS {
		return "", retErr("nvml version", ret)
	}
	return version, nil
}

type nvmlDevice struct {
	dev nvml.Device
}

func (d nvmlDevice) Name() (string, nvml.Return) {
	return d.dev.GetName()
}

func (d nvmlDevice) Temperature() (uint32, nvml.Return) {
	return d.dev.GetTemperature(nvml.TEMPERATURE_GPU)
}

func (d nvmlDevice) FanSpeed() (uint32, nvml.Return) {
	return d.dev.GetFanSpeed()
}

func (d nvmlDevice) MemoryInfo() (nvml.Memory, nvml.Return) {
	return d.dev.GetMemoryInfo()
}

func (d nvmlDevice) PowerUsage() (uint32, nvml.Return) {
	return d.dev.GetPowerUsage()
}

func (d nvmlDevice) PersistenceMode() (nvml.EnableState, nvml.Return) {
	return d.dev.GetPersistenceMode()
}

func (d nvmlDevice) InforomValidation() nvml.Return {
	return d.dev.ValidateInforom()
}

func (d nvmlDevice) ClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	return d.dev.GetClockInfo(clock)
}

func (d nvmlDevice) ECCCounter(location nvml.MemoryLocation, errorType nvml.MemoryErrorType) (uint64, nvml.Return) {
	return d.dev.GetMemoryErrorCounter(errorType, nvml.AGGREGATE_ECC, location)
}

func (d nvmlDevice) PCIeLinkGeneration() (int, nvml.Return) {
	return d.dev.GetCurrPcieLinkGeneration()
}

func (d nvmlDevice) PCIeLinkWidth() (int, nvml.Return) {
	return d.dev.GetCurrPcieLinkWidth()
}

func (d nvmlDevice) ThrottleReasons() (uint64, nvml.Return) {
	return d.dev.GetCurrentClocksThrottleReasons()
}

func (d nvmlDevice) ComputeMode() (nvml.ComputeMode, nvml.Return) {
	return d.dev.GetComputeMode()
}

func (d nvmlDevice) PCIInfo() (nvml.PciInfo, nvml.Return) {
	return d.dev.GetPciInfo()
}

func retErr(op string, ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return fmt.Errorf("%s: %s", op, nvml.ErrorString(ret))
}
