package webserver

import (
	"fmt"
	"net"
)

// FindAvailablePort returns the first port in [startPort, endPort] that can
// be bound on 127.0.0.1.
func FindAvailablePort(startPort, endPort int) (uint16, error) {
	if startPort < 1 || endPort > 65535 || startPort > endPort {
		return 0, fmt.Errorf("invalid port range %d-%d", startPort, endPort)
	}
	for port := startPort; port <= endPort; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			listener.Close()
			return uint16(port), nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", startPort, endPort)
}

// FreePort asks the kernel for an unused port on 127.0.0.1.
func FreePort() (uint16, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("probe free port: %w", err)
	}
	defer listener.Close()
	return uint16(listener.Addr().(*net.TCPAddr).Port), nil
}
