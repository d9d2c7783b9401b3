//go:build !unix

package evloop

import (
	"net"
	"syscall"
)

// tryWrite accepts nothing inline on platforms without a non-blocking write
// path; every write goes through the queue.
func tryWrite(conn net.Conn, p []byte) (int, error) {
	return 0, nil
}

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
