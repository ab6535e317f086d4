package eventloop

import (
	"net"

	"github.com/go-slimevr/trackerhub/pkg/logger"
)

// enumerateBroadcastAddresses collects one IPv4 broadcast address per
// non-loopback, up, non-point-to-point, physical interface. Any failure
// enumerating interfaces or an interface's addresses yields an empty set
// rather than a partial-and-silently-wrong one; the caller disables
// discovery in that case.
func enumerateBroadcastAddresses(port int, log logger.Logger) []*net.UDPAddr {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Error().Err(err).Str("kind", string(logger.KindInterfaceEnum)).Msg("failed to enumerate network interfaces, discovery disabled")
		return nil
	}

	var out []*net.UDPAddr

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagPointToPoint != 0 {
			continue
		}

		if isVirtualInterface(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			log.Warn().Err(err).Str("kind", string(logger.KindInterfaceEnum)).Str("interface", iface.Name).Msg("failed to read interface addresses, discovery disabled")
			return nil
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}

			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}

			broadcast := broadcastForSubnet(ip4, ipNet.Mask)
			out = append(out, &net.UDPAddr{IP: broadcast, Port: port})
		}
	}

	return out
}

func broadcastForSubnet(ip net.IP, mask net.IPMask) net.IP {
	broadcast := make(net.IP, len(ip))
	for i := range ip {
		broadcast[i] = ip[i] | ^mask[i]
	}

	return broadcast
}

func isVirtualInterface(name string) bool {
	for _, prefix := range []string{"docker", "br-", "veth", "virbr", "lo"} {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}
