// Command isotpcat sends one payload over a CAN interface using ISO-TP and
// prints whatever payloads it receives back, until interrupted.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/canlink-io/isotp"
	"github.com/canlink-io/isotp/internal/pack"
	"github.com/canlink-io/isotp/pkg/can"
	_ "github.com/canlink-io/isotp/pkg/can/socketcan"
	_ "github.com/canlink-io/isotp/pkg/can/virtual"
	"github.com/canlink-io/isotp/pkg/runner"
)

func main() {
	log.SetLevel(log.InfoLevel)

	iface := flag.String("i", "vcan0", "CAN interface name, or host:port for a virtual bus")
	kind := flag.String("kind", "socketcan", "bus backend: socketcan or virtual")
	sendID := flag.Uint("send-id", 0x700, "arbitration ID used for outbound frames")
	recvID := flag.Uint("recv-id", 0x701, "arbitration ID to listen for inbound frames on")
	payload := flag.String("payload", "", "payload to send as a hex string, e.g. 0011223344")
	flag.Parse()

	bus, err := can.NewBus(*kind, *iface)
	if err != nil {
		log.WithError(err).Fatal("failed to construct bus")
	}

	r := runner.NewRunner(bus, time.Millisecond)
	link := &isotp.Link{}
	link.Init(uint32(*sendID), pack.NewOctetBuffer(4095), pack.NewOctetBuffer(4095), isotp.DefaultConfig(),
		r, r, runner.NewLoggingCallbacks(log.WithField("component", "isotpcat"), nil))
	if err := r.AddLink("isotpcat", uint32(*recvID), link); err != nil {
		log.WithError(err).Fatal("failed to register link")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := r.Run(ctx); err != nil {
			log.WithError(err).Error("runner stopped")
		}
	}()

	if *payload != "" {
		data, err := hex.DecodeString(*payload)
		if err != nil {
			log.WithError(err).Fatal("invalid -payload")
		}
		if result := link.Send(data); result != isotp.OK {
			log.WithField("result", result).Fatal("send failed")
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	out := make([]byte, 4095)
	for {
		select {
		case <-sig:
			return
		case <-ticker.C:
			if n, result := link.Receive(out); result == isotp.OK {
				log.WithField("bytes", n).Infof("received: % x", out[:n])
			}
		}
	}
}
