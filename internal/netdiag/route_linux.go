//go:build linux

package netdiag

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// EgressRoute asks the kernel which route packets to addr will take.
func EgressRoute(addr net.IP) (*Route, error) {
	routes, err := netlink.RouteGet(addr)
	if err != nil {
		return nil, fmt.Errorf("route lookup for %s: %w", addr, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route to %s", addr)
	}

	r := routes[0]
	out := &Route{Gateway: r.Gw, Source: r.Src}
	if r.LinkIndex > 0 {
		if link, err := netlink.LinkByIndex(r.LinkIndex); err == nil {
			out.Interface = link.Attrs().Name
		}
	}
	return out, nil
}
