// Package app wires one probe run: configuration, NVML lifecycle,
// collection, evaluation, and report rendering.
package app

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gpumon/check-gpu/internal/check"
	"github.com/gpumon/check-gpu/internal/collect"
	"github.com/gpumon/check-gpu/internal/config"
	"github.com/gpumon/check-gpu/internal/report"
)

// Process exit codes understood by monitoring schedulers.
const (
	ExitOK       = 0
	ExitWarning  = 1
	ExitCritical = 2
	ExitUnknown  = 3
)

// Run performs one complete check and returns the text to print on stdout
// together with the process exit code. The management library is shut down
// on every path once it has been initialized.
func Run(lib collect.Library, opts config.Options, logger *slog.Logger) (output string, code int) {
	table, err := buildTable(opts)
	if err != nil {
		return errorText(err), ExitUnknown
	}

	if err := lib.Init(); err != nil {
		return errorText(err), ExitUnknown
	}
	defer func() {
		if err := lib.Shutdown(); err != nil {
			logger.Error("library shutdown failed", "err", err)
			output = errorText(err)
			code = ExitUnknown
		}
	}()

	count, err := lib.DeviceCount()
	if err != nil {
		return errorText(err), ExitUnknown
	}
	if count == 0 {
		return errorText(fmt.Errorf("no devices present")), ExitUnknown
	}

	dev, selector, err := selectDevice(lib, opts, count)
	if err != nil {
		return errorText(err), ExitUnknown
	}

	snap := collect.Collect(dev, selector, logger.With("component", "collect"))
	result, perf := check.Evaluate(snap, table, opts.Sensors)
	product := collect.ProductName(snap)

	var debug *report.Debug
	if opts.Verbosity >= 3 {
		debug = debugInfo(lib, product, count)
	}

	output = report.Render(snap, product, result, perf, table, report.Options{
		Verbosity:       opts.Verbosity,
		ShowUnavailable: opts.ShowUnavailable,
	}, debug)

	if opts.PromTextfile != "" {
		if err := report.WriteTextfile(opts.PromTextfile, product, perf, result); err != nil {
			// The check itself succeeded; a broken export path only
			// affects the textfile consumer.
			logger.Warn("prometheus textfile write failed", "path", opts.PromTextfile, "err", err)
		}
	}

	return output, int(result.Severity())
}

// buildTable seeds the threshold table and applies overrides: positional
// lists first, then the config file, so config values win on conflict.
func buildTable(opts config.Options) (*check.Table, error) {
	table := check.NewTable()
	if err := table.ApplyWarningList(opts.WarningList); err != nil {
		return nil, err
	}
	if err := table.ApplyCriticalList(opts.CriticalList); err != nil {
		return nil, err
	}
	if opts.ConfigPath != "" {
		overrides, err := config.LoadThresholds(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		if err := table.ApplyNamed(overrides); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func selectDevice(lib collect.Library, opts config.Options, count int) (collect.Device, string, error) {
	if opts.BusID != "" {
		dev, err := lib.DeviceByBusID(opts.BusID)
		if err != nil {
			return nil, "", err
		}
		return dev, opts.BusID, nil
	}
	if opts.DeviceIndex >= count {
		return nil, "", fmt.Errorf("device index %d out of range, %d device(s) present", opts.DeviceIndex, count)
	}
	dev, err := lib.DeviceByIndex(opts.DeviceIndex)
	if err != nil {
		return nil, "", err
	}
	return dev, strconv.Itoa(opts.DeviceIndex), nil
}

func debugInfo(lib collect.Library, product string, count int) *report.Debug {
	debug := &report.Debug{
		DeviceCount: count,
		DeviceName:  product,
	}
	if version, err := lib.DriverVersion(); err == nil {
		debug.DriverVersion = version
	} else {
		debug.DriverVersion = "N/A"
	}
	if version, err := lib.NVMLVersion(); err == nil {
		debug.NVMLVersion = version
	} else {
		debug.NVMLVersion = "N/A"
	}
	return debug
}

func errorText(err error) string {
	return fmt.Sprintf("Error: %v", err)
}
