package sysutil

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/rileyhilliard/rig/internal/errors"
)

// GetHostIP splits a host:port address and resolves the host to an IP,
// preferring IPv4. "localhost:2303" gives ("127.0.0.1", 2303).
func GetHostIP(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid address %q", addr),
			"Use host:port, e.g. node1:22")
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid port in %q", addr),
			"Ports are numbers from 0 to 65535.")
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), uint16(port), nil
	}

	ips, err := net.DefaultResolver.LookupIP(context.Background(), "ip", host)
	if err != nil || len(ips) == 0 {
		return "", 0, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't resolve %s", host),
			"Check the hostname, or use an IP address.")
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip.String(), uint16(port), nil
		}
	}
	return ips[0].String(), uint16(port), nil
}
