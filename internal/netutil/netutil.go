// Package netutil answers "ipaddr" diagnostics: the non-loopback IPv4
// addresses of the local interfaces.
package netutil

import "net"

// LocalIPv4Addrs returns every IPv4 address assigned to an up,
// non-loopback interface. Interfaces that cannot be inspected are
// skipped.
func LocalIPv4Addrs() []string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				out = append(out, v4.String())
			}
		}
	}

	return out
}
