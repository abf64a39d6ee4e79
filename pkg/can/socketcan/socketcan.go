// Package socketcan adapts github.com/brutella/can's Linux SocketCAN
// implementation to this module's can.Bus interface.
package socketcan

import (
	sockcan "github.com/brutella/can"

	"github.com/canlink-io/isotp/pkg/can"
)

func init() {
	can.RegisterInterface("socketcan", NewBus)
}

// Bus wraps a *brutella/can.Bus bound to one SocketCAN interface name.
type Bus struct {
	bus        *sockcan.Bus
	rxListener can.FrameListener
}

// NewBus opens (but does not yet connect) the named SocketCAN interface,
// e.g. "can0" or "vcan0".
func NewBus(name string) (can.Bus, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	return &Bus{bus: bus}, nil
}

func (b *Bus) Connect(...any) error {
	go b.bus.ConnectAndPublish()
	return nil
}

func (b *Bus) Disconnect() error {
	return b.bus.Disconnect()
}

func (b *Bus) Send(frame can.Frame) error {
	return b.bus.Publish(sockcan.Frame{
		ID:     frame.ID,
		Length: frame.DLC,
		Flags:  frame.Flags,
		Data:   frame.Data,
	})
}

func (b *Bus) Subscribe(listener can.FrameListener) error {
	b.rxListener = listener
	b.bus.Subscribe(b)
	return nil
}

// Handle satisfies brutella/can's own Handler interface and forwards into
// this package's can.FrameListener.
func (b *Bus) Handle(frame sockcan.Frame) {
	if b.rxListener == nil {
		return
	}
	b.rxListener.Handle(can.Frame{ID: frame.ID, DLC: frame.Length, Flags: frame.Flags, Data: frame.Data})
}
