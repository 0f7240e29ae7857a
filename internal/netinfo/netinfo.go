// Package netinfo finds the LAN address other machines should use to reach
// this host.
package netinfo

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/jackpal/gateway"
)

const Fallback = "127.0.0.1"

// LocalIP returns the IPv4 address of the interface facing the default
// gateway, then the source address a UDP dial towards a public resolver would
// use, then 127.0.0.1. Nothing is sent on the wire.
func LocalIP() string {
	if gw, err := gateway.DiscoverGateway(); err == nil {
		if ip, err := ipForGateway(gw, interfaceAddrs); err == nil {
			return ip.String()
		}
	}
	if ip, err := outboundIP("8.8.8.8:80"); err == nil {
		return ip
	}
	return Fallback
}

// URL is the address printed in the banner and encoded into QR codes.
func URL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// AdvertisedHost picks what to show for a configured bind host: a concrete
// address is shown as-is, a wildcard is replaced with LocalIP.
func AdvertisedHost(bind string) string {
	switch bind {
	case "", "0.0.0.0", "::", "[::]":
		return LocalIP()
	}
	return bind
}

type addrLister func() ([]net.Addr, error)

func interfaceAddrs() ([]net.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var out []net.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, addrs...)
	}
	return out, nil
}

var errNoMatch = errors.New("no local address on the gateway subnet")

func ipForGateway(gw net.IP, list addrLister) (net.IP, error) {
	addrs, err := list()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		v4 := ipnet.IP.To4()
		if v4 == nil || v4.IsLoopback() || !v4.IsGlobalUnicast() {
			continue
		}
		if ipnet.Contains(gw) {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%w %s", errNoMatch, gw)
}

func outboundIP(target string) (string, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	ua, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || ua.IP == nil || ua.IP.IsUnspecified() {
		return "", errors.New("no usable local address")
	}
	return ua.IP.String(), nil
}
