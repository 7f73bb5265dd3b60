// check-gpu probes one NVIDIA GPU through NVML, evaluates its sensors
// against warning/critical thresholds, and prints a status line plus
// perfdata for a monitoring scheduler. The exit code carries the result:
// 0 OK, 1 warning, 2 critical, 3 unknown or configuration error.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gpumon/check-gpu/internal/app"
	"github.com/gpumon/check-gpu/internal/collect"
	"github.com/gpumon/check-gpu/internal/config"
	"github.com/gpumon/check-gpu/internal/version"
)

var (
	buildVersion = "dev"
	buildCommit  = ""
	buildTime    = ""
)

func main() {
	version.Set(version.Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	})

	opts, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			os.Exit(app.ExitOK)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(app.ExitUnknown)
	}

	if opts.ShowVersion {
		info := version.Current()
		fmt.Printf("check-gpu %s", info.Version)
		if info.Commit != "" {
			fmt.Printf(" (%s)", info.Commit)
		}
		fmt.Println()
		os.Exit(app.ExitOK)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.LogLevel})
	logger := slog.New(handler)

	output, code := app.Run(collect.NewLibrary(), opts, logger)
	fmt.Println(output)
	os.Exit(code)
}
