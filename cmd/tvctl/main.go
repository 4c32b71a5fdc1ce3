package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd/tvctl
var Version = "dev"

const usage = `tvctl - companion daemon for networked webOS displays

Usage:
  tvctl <command> [options]

Commands:
  start          Start the daemon (API server, device controllers)
  discover       Browse the local network for displays
  devices list   List configured devices and their state
  preset run <device> <preset>   Execute a preset
  power on <device>              Wake a device over the network
  power off <device>             Power a device off (guarded)
  power screen-on <device>       Restore a blanked panel
  power screen-off <device>      Blank the panel

Run 'tvctl <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "start":
		return runStart(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "devices":
		if len(args) < 3 || args[2] != "list" {
			fmt.Fprintln(stdout, "Usage: tvctl devices list")
			return 1
		}
		return runDevicesList(args[3:], stdout, stderr)
	case "preset":
		if len(args) < 3 || args[2] != "run" {
			fmt.Fprintln(stdout, "Usage: tvctl preset run <device> <preset>")
			return 1
		}
		return runPresetRun(args[3:], stdout, stderr)
	case "power":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: tvctl power <on|off|screen-on|screen-off> <device>")
			return 1
		}
		return runPower(args[2], args[3:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "tvctl %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
