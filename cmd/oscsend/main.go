// Command oscsend sends a single OSC message over UDP, with the address and
// an optional int or string argument taken from flags, for interactive
// testing of a running receiver.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"time"

	"github.com/lumenstage/osc"
	"github.com/lumenstage/osc/transport"
)

var (
	hostFlag    = flag.String("host", "127.0.0.1", "`host` to send to")
	portFlag    = flag.Int("port", 0, "`port` to send to")
	addressFlag = flag.String("address", "/test", "OSC `address` to send the message to")
	intArgFlag  = flag.String("int", "", "send a single int32 argument with this `value`")
	strArgFlag  = flag.String("string", "", "send a single string argument with this `value`")
)

func main() {
	flag.Parse()
	if *portFlag == 0 {
		log.Fatal("-port is required")
	}

	msg, err := osc.NewMessage(*addressFlag)
	if err != nil {
		log.Fatalf("invalid address %q: %v", *addressFlag, err)
	}
	switch {
	case *intArgFlag != "":
		n, err := strconv.Atoi(*intArgFlag)
		if err != nil {
			log.Fatalf("invalid -int value: %v", err)
		}
		msg.Arguments = append(msg.Arguments, osc.Int(int32(n)))
	case *strArgFlag != "":
		s := osc.String(*strArgFlag)
		msg.Arguments = append(msg.Arguments, &s)
	}

	client := transport.NewUDPClient(*hostFlag, *portFlag)
	defer client.Close()

	if err := client.Send(msg); err != nil {
		log.Fatalf("send: %v", err)
	}
	log.Printf("sent %v to %s:%d", msg, *hostFlag, *portFlag)

	// Give any reply a moment to arrive before exiting.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	select {
	case reply := <-client.Incoming():
		log.Printf("reply: %v", reply)
	case <-ctx.Done():
	}
}
