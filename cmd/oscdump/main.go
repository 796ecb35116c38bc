// Command oscdump listens for OSC messages over UDP and logs every one
// that arrives, regardless of address. It is the example harness for the
// transport package: malformed datagrams are dropped at the transport
// layer before oscdump ever sees them, per the library's silent-drop
// convention.
package main

import (
	"flag"
	"log"

	"github.com/lumenstage/osc"
	"github.com/lumenstage/osc/transport"
)

var (
	hostFlag = flag.String("host", "127.0.0.1", "`host` to listen on")
	portFlag = flag.Int("port", 9000, "`port` to listen on")
)

func main() {
	flag.Parse()

	server := transport.NewUDPServer()
	port, err := server.Start(*hostFlag, *portFlag)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("listening on %s:%d", *hostFlag, port)

	for endpoint := range server.NewFlows() {
		ch, ok := server.Flow(endpoint)
		if !ok {
			continue
		}
		go dumpFlow(endpoint, ch)
	}
}

func dumpFlow(from transport.SenderEndpoint, ch <-chan osc.Packet) {
	for pkt := range ch {
		log.Printf("%s: %v", from, pkt)
	}
}
