// Package discovery browses the local network for webOS displays using
// mDNS/DNS-SD, so devices can be added without typing IP addresses.
//
// Discovery only produces device candidates; names, policy flags, and the
// pairing handshake are configured afterwards. Candidates carry
// Custom=false to distinguish them from hand-entered devices.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/device"
)

// ServiceType is the DNS-SD service type webOS displays advertise.
const ServiceType = "_webos-second-screen._tcp"

// DefaultTimeout bounds a browse when the caller's context carries no
// earlier deadline.
const DefaultTimeout = 5 * time.Second

// Browse scans the local network and returns one device candidate per
// discovered display. Entries without a usable IPv4 address are skipped.
func Browse(ctx context.Context) ([]*device.Device, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	var found []*device.Device
	seen := make(map[string]bool)
	for entry := range entries {
		if len(entry.AddrIPv4) == 0 {
			log.Debug().Str("instance", entry.Instance).Msg("discovered entry has no IPv4 address")
			continue
		}
		addr := entry.AddrIPv4[0].String()
		if seen[addr] {
			continue
		}
		seen[addr] = true

		d := device.New(entry.Instance, addr, device.Options{})
		found = append(found, d)
		log.Info().Str("name", entry.Instance).Str("address", addr).Msg("discovered display")
	}

	return found, nil
}
