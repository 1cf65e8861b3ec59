package netdiag

import "net"

// Route describes the kernel's egress choice for the target address.
type Route struct {
	Interface string
	Gateway   net.IP
	Source    net.IP
}

func (r *Route) String() string {
	s := "via " + r.Interface
	if r.Gateway != nil {
		s += " gw " + r.Gateway.String()
	}
	if r.Source != nil {
		s += " src " + r.Source.String()
	}
	return s
}
