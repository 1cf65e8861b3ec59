//go:build !linux

package netdiag

import (
	"errors"
	"net"
)

// EgressRoute is only implemented on Linux.
func EgressRoute(addr net.IP) (*Route, error) {
	return nil, errors.New("route lookup not supported on this platform")
}
