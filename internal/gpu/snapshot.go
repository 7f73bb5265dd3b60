// Package gpu defines the device snapshot model shared by the collector,
// the threshold checker, and the report formatter.
package gpu

// Kind discriminates the shapes a snapshot value can take.
type Kind int

const (
	// KindNumber is a plain numeric reading.
	KindNumber Kind = iota
	// KindText is an enumerated or free-form string value, including
	// literal error text from a failed attribute query.
	KindText
	// KindUnavailable marks a sensor the device does not support.
	KindUnavailable
	// KindNested is a sub-mapping of sensor name to value.
	KindNested
)

// Value is a tagged variant holding one sensor reading.
type Value struct {
	kind   Kind
	num    float64
	text   string
	nested Snapshot
}

// Snapshot is a read-only set of sensor readings for one GPU at one
// point in time. Values may nest arbitrarily.
type Snapshot map[string]Value

// Number wraps a numeric reading.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Text wraps a string reading.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Unavailable marks a sensor as not supported by the device.
func Unavailable() Value { return Value{kind: KindUnavailable} }

// Nested wraps a sub-mapping.
func Nested(s Snapshot) Value { return Value{kind: KindNested, nested: s} }

// Kind reports the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric reading. Valid only for KindNumber.
func (v Value) Float() float64 { return v.num }

// Text returns the string reading. Valid only for KindText.
func (v Value) Text() string { return v.text }

// Nested returns the sub-mapping. Valid only for KindNested.
func (v Value) Nested() Snapshot { return v.nested }

// IsUnavailable reports whether the sensor reading is "N/A".
func (v Value) IsUnavailable() bool { return v.kind == KindUnavailable }

// Sensor names for the readings the collector produces and the
// threshold table knows about.
const (
	SensorProductName     = "productName"
	SensorTemperature     = "GPUTemperature"
	SensorFanSpeed        = "fanSpeed"
	SensorUsedMemory      = "usedMemory"
	SensorPowerUsage      = "PWRUsage"
	SensorPersistence     = "persistenceMode"
	SensorInforomValid    = "inforomValid"
	SensorComputeMode     = "computeMode"
	SensorThrottleReasons = "throttleReasons"
	SensorClockInfo       = "clockInfo"
	SensorGraphicsClock   = "graphicsClock"
	SensorSMClock         = "smClock"
	SensorMemClock        = "memClock"
	SensorECCCounts       = "ECCErrorCounts"
	SensorECCMemAggSgl    = "ECCMemAggSgl"
	SensorECCL1AggSgl     = "ECCL1AggSgl"
	SensorECCL2AggSgl     = "ECCL2AggSgl"
	SensorECCRegAggSgl    = "ECCRegAggSgl"
	SensorECCTexAggSgl    = "ECCTexAggSgl"
	SensorECCMemAggDbl    = "ECCMemAggDbl"
	SensorECCL1AggDbl     = "ECCL1AggDbl"
	SensorECCL2AggDbl     = "ECCL2AggDbl"
	SensorECCRegAggDbl    = "ECCRegAggDbl"
	SensorECCTexAggDbl    = "ECCTexAggDbl"
	SensorPCIeLink        = "PCIeLink"
	SensorPCIeLinkGen     = "PCIeLinkGen"
	SensorPCIeLinkWidth   = "PCIeLinkWidth"
	SensorDeviceID        = "deviceID"
	SensorPCIBusID        = "devicePciBusId"
)

// DoubleBitSuffix identifies the aggregate double-bit ECC counter family.
const DoubleBitSuffix = "AggDbl"

// Throttle reason names as decoded from the NVML clocks-throttle bitmask.
const (
	ReasonNone             = "None"
	ReasonGPUIdle          = "GpuIdle"
	ReasonAppClocksSetting = "ApplicationsClocksSetting"
	ReasonSWPowerCap       = "SwPowerCap"
	ReasonHWSlowdown       = "HwSlowdown"
	ReasonSyncBoost        = "SyncBoost"
	ReasonSWThermal        = "SwThermalSlowdown"
	ReasonHWThermal        = "HwThermalSlowdown"
	ReasonHWPowerBrake     = "HwPowerBrakeSlowdown"
	ReasonDisplayClocks    = "DisplayClockSetting"
	ReasonUnknown          = "Unknown"
)

// Excluded reports whether a key is collector bookkeeping that must never
// be displayed, flattened into perfdata, or evaluated against thresholds.
func Excluded(name string) bool {
	switch name {
	case SensorDeviceID, SensorPCIBusID:
		return true
	}
	return false
}
