package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

func runPresetRun(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("preset run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		reconnect  bool
	)
	fs.StringVar(&configPath, "config", "", "Path to config file")
	fs.BoolVar(&reconnect, "reconnect", false, "Force a fresh session before running")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(stderr, "Usage: tvctl preset run <device> <preset>")
		return 1
	}
	deviceName, presetName := fs.Arg(0), fs.Arg(1)

	addr, err := loadConfigAddr(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	u := fmt.Sprintf("http://%s/api/devices/%s/presets/%s?reconnect=%v",
		addr, url.PathEscape(deviceName), url.PathEscape(presetName), reconnect)

	ok, err := postOK(u, 5*time.Minute)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(stdout, "Preset %s failed on %s.\n", presetName, deviceName)
		return 1
	}
	fmt.Fprintf(stdout, "Preset %s executed on %s.\n", presetName, deviceName)
	return 0
}

// postOK posts to a boolean-result endpoint and reports its "ok" field.
func postOK(u string, timeout time.Duration) (bool, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(u, "application/json", nil)
	if err != nil {
		return false, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("api returned %s", resp.Status)
	}

	var body struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(resp.Body, &body); err != nil {
		return false, err
	}
	return body.OK, nil
}
