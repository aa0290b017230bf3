package server

import (
	"fmt"
	"net"
)

// parseIPv4 converts a dotted-quad (or "0.0.0.0") string into the
// 4-byte form unix.SockaddrInet4 expects.
func parseIPv4(s string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(s)
	if ip == nil {
		return out, fmt.Errorf("not an IP address: %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("not an IPv4 address: %q", s)
	}
	copy(out[:], v4)
	return out, nil
}
