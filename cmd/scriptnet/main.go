// Command scriptnet opens TCP, TLS and UDP transports from the command line.
//
// Usage:
//
//	scriptnet connect [--tls] <host> <port>
//	scriptnet udp listen <host> <port>
//	scriptnet udp send <host> <port> <message>
//	scriptnet gencert --out <dir> --host <name>
//
// Received bytes are written to stdout; stdin is sent to the peer.
package main

import "github.com/mash-protocol/scriptnet/cmd/scriptnet/cmd"

func main() {
	cmd.Execute()
}
