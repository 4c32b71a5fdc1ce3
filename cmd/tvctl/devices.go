package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/tvcompanion/host/internal/config"
)

// deviceRow mirrors the API's device status shape for display.
type deviceRow struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Model         string `json:"model"`
	Connected     bool   `json:"connected"`
	State         string `json:"state"`
	ForegroundApp string `json:"foreground_app"`
}

func runDevicesList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("devices list", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:8320"
	}

	// Prefer live state from a running daemon; fall back to the config
	// when none is reachable.
	if rows, err := fetchDevices(addr); err == nil {
		w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tMODEL\tSTATE\tCONNECTED\tFOREGROUND")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
				r.Name, r.Address, r.Model, r.State, r.Connected, r.ForegroundApp)
		}
		w.Flush()
		return 0
	}

	if len(cfg.Devices) == 0 {
		fmt.Fprintln(stdout, "No devices configured.")
		return 0
	}

	fmt.Fprintln(stdout, "Daemon not running; showing configured devices.")
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tHWADDR")
	for _, d := range cfg.Devices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Address, d.HardwareAddr)
	}
	w.Flush()
	return 0
}

func fetchDevices(addr string) ([]deviceRow, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/devices", addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned %s", resp.Status)
	}

	var rows []deviceRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
