package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/tvcompanion/host/internal/config"
)

func runPower(sub string, args []string, stdout, stderr io.Writer) int {
	var path string
	switch sub {
	case "on":
		path = "power/on"
	case "off":
		path = "power/off"
	case "screen-on":
		path = "screen/on"
	case "screen-off":
		path = "screen/off"
	default:
		fmt.Fprintf(stderr, "Unknown power command: %s\n", sub)
		return 1
	}

	fs := flag.NewFlagSet("power "+sub, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		noHdmi     bool
	)
	fs.StringVar(&configPath, "config", "", "Path to config file")
	fs.BoolVar(&noHdmi, "no-hdmi-check", false, "Skip the HDMI input guard on power off")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(stderr, "Usage: tvctl power %s <device>\n", sub)
		return 1
	}
	deviceName := fs.Arg(0)

	addr, err := loadConfigAddr(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	u := fmt.Sprintf("http://%s/api/devices/%s/%s", addr, url.PathEscape(deviceName), path)
	if sub == "off" && noHdmi {
		u += "?check_hdmi=false"
	}

	// Wake retries alone can take over ten seconds.
	ok, err := postOK(u, time.Minute)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(stdout, "power %s failed on %s\n", sub, deviceName)
		return 1
	}
	fmt.Fprintf(stdout, "power %s done on %s\n", sub, deviceName)
	return 0
}

// loadConfigAddr loads the config only to resolve the API address.
func loadConfigAddr(configPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Addr == "" {
		return "127.0.0.1:8320", nil
	}
	return cfg.Addr, nil
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
