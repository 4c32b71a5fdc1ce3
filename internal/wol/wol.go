// Package wol sends wake-on-LAN magic packets. It implements
// transport.WakeSender for the control layer.
package wol

import (
	"fmt"
	"net"

	apperrors "github.com/tvcompanion/host/internal/errors"
)

// magicRepeats is the number of times the hardware address repeats after
// the synchronization header in a magic packet.
const magicRepeats = 16

// Sender broadcasts magic packets over UDP.
type Sender struct {
	// BroadcastAddr is the target address; defaults to the limited
	// broadcast on the discard-adjacent port 9.
	BroadcastAddr string
}

// NewSender creates a Sender targeting the default broadcast address.
func NewSender() *Sender {
	return &Sender{BroadcastAddr: "255.255.255.255:9"}
}

// MagicPacket builds the 102-byte payload for a hardware address: six
// bytes of 0xFF followed by the address repeated sixteen times.
func MagicPacket(hardwareAddr string) ([]byte, error) {
	mac, err := net.ParseMAC(hardwareAddr)
	if err != nil {
		return nil, fmt.Errorf("parse hardware address %q: %w", hardwareAddr, err)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("hardware address %q is not 48-bit", hardwareAddr)
	}

	packet := make([]byte, 0, 6+magicRepeats*len(mac))
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < magicRepeats; i++ {
		packet = append(packet, mac...)
	}
	return packet, nil
}

// SendWakeSignal broadcasts a magic packet for hardwareAddr.
func (s *Sender) SendWakeSignal(hardwareAddr string) error {
	packet, err := MagicPacket(hardwareAddr)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeWakeSendFailed, "invalid hardware address", err)
	}

	addr := s.BroadcastAddr
	if addr == "" {
		addr = "255.255.255.255:9"
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeWakeSendFailed, "open broadcast socket", err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return apperrors.Wrap(apperrors.CodeWakeSendFailed, "send magic packet", err)
	}
	return nil
}
