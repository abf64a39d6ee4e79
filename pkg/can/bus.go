// Package can defines a minimal CAN bus abstraction used by the host layer
// to wire an isotp.Link's Transmitter and inbound-frame path to a real or
// virtual bus. It is never imported by the core state machines in the
// isotp package.
package can

import "fmt"

const (
	// RTRFlag marks a frame as a remote-transmission request.
	RTRFlag uint32 = 0x40000000
	// SFFMask masks the 11-bit standard-format arbitration ID.
	SFFMask uint32 = 0x000007FF
)

// A Frame is one classical CAN frame: up to 8 bytes of data under an
// arbitration ID.
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, data []byte) Frame {
	f := Frame{ID: id, Flags: flags, DLC: uint8(len(data))}
	copy(f.Data[:], data)
	return f
}

// FrameListener receives frames delivered by a Bus.
type FrameListener interface {
	Handle(frame Frame)
}

// FrameListenerFunc adapts a plain function to a FrameListener.
type FrameListenerFunc func(Frame)

func (f FrameListenerFunc) Handle(frame Frame) { f(frame) }

// Bus is the transport a Runner drives. Implementations live under
// pkg/can/socketcan (real hardware) and pkg/can/virtual (TCP-transported,
// for tests and examples without hardware).
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from the CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(listener FrameListener) error // Subscribe to all received frames
}

// NewInterfaceFunc constructs a Bus for a given channel string (e.g. a
// SocketCAN interface name or a virtual bus server address).
type NewInterfaceFunc func(channel string) (Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// RegisterInterface makes a Bus constructor available under a name. Bus
// implementations call this from an init() function.
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	interfaceRegistry[interfaceType] = newInterface
}

// NewBus constructs a registered Bus implementation by name.
// Currently registered: socketcan, virtual.
func NewBus(canInterface string, channel string) (Bus, error) {
	createInterface, ok := interfaceRegistry[canInterface]
	if !ok {
		return nil, fmt.Errorf("can: unsupported interface %q", canInterface)
	}
	return createInterface(channel)
}
