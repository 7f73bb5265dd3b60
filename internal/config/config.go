// Package config parses the probe's command line, environment, and
// optional threshold config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Options holds everything one probe run needs. Exactly one of
// DeviceIndex/BusID selects the device.
type Options struct {
	DeviceIndex     int
	BusID           string
	Sensors         []string
	WarningList     []string
	CriticalList    []string
	ConfigPath      string
	Verbosity       int
	ShowUnavailable bool
	PromTextfile    string
	ShowVersion     bool
	LogLevel        slog.Level
}

// ErrHelp is returned when the user asked for usage text; the caller
// should exit cleanly without running a check.
var ErrHelp = pflag.ErrHelp

// ParseArgs parses command line arguments (without the program name) and
// validates the device selector. Environment variables supply ambient
// settings that have no flag.
func ParseArgs(args []string) (Options, error) {
	opts := Options{
		DeviceIndex: -1,
		LogLevel:    slog.LevelWarn,
	}

	flags := pflag.NewFlagSet("check-gpu", pflag.ContinueOnError)
	flags.IntVarP(&opts.DeviceIndex, "device", "d", -1, "device index to check")
	flags.StringVarP(&opts.BusID, "bus-id", "b", "", "PCI bus ID of the device to check")
	flags.StringSliceVarP(&opts.Sensors, "sensors", "s", nil, "restrict perfdata to these top-level sensors")
	flags.StringSliceVarP(&opts.WarningList, "warning", "w", nil, "positional warning thresholds, 'd' keeps the default")
	flags.StringSliceVarP(&opts.CriticalList, "critical", "c", nil, "positional critical thresholds, 'd' keeps the default")
	flags.StringVar(&opts.ConfigPath, "config", "", "YAML file with named threshold overrides")
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "increase output detail (repeat up to -vvv)")
	flags.BoolVar(&opts.ShowUnavailable, "show-na", false, "include unavailable sensors in the detail output")
	flags.StringVar(&opts.PromTextfile, "prom-textfile", "", "also write metrics to this prometheus textfile")
	flags.BoolVar(&opts.ShowVersion, "version", false, "print version information and exit")

	if err := flags.Parse(args); err != nil {
		return Options{}, err
	}
	if opts.ShowVersion {
		return opts, nil
	}

	if rest := flags.Args(); len(rest) > 0 {
		return Options{}, fmt.Errorf("unexpected trailing arguments: %s", strings.Join(rest, " "))
	}

	hasIndex := opts.DeviceIndex >= 0
	hasBus := opts.BusID != ""
	if hasIndex && hasBus {
		return Options{}, fmt.Errorf("use either --device or --bus-id, not both")
	}
	if !hasIndex && !hasBus {
		return Options{}, fmt.Errorf("a device must be selected with --device or --bus-id")
	}

	if opts.Verbosity > 3 {
		opts.Verbosity = 3
	}

	if value := strings.TrimSpace(os.Getenv("CHECK_GPU_LOG_LEVEL")); value != "" {
		level, err := parseLogLevel(value)
		if err != nil {
			return Options{}, fmt.Errorf("parse CHECK_GPU_LOG_LEVEL: %w", err)
		}
		opts.LogLevel = level
	}

	return opts, nil
}

// thresholdFile is the YAML shape of the --config file.
type thresholdFile struct {
	Thresholds map[string][]float64 `yaml:"thresholds"`
}

// LoadThresholds reads named threshold overrides from a YAML file. Range
// sensors take [warn, crit], equality sensors a single value.
func LoadThresholds(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if len(file.Thresholds) == 0 {
		return nil, fmt.Errorf("config file %s has no thresholds section", path)
	}
	return file.Thresholds, nil
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unsupported log level %q", input)
	}
}
