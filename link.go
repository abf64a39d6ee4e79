// Package isotp implements the ISO 15765-2 (ISO-TP) transport layer: a
// segmentation-and-reassembly engine that carries payloads of up to 4095
// octets over 8-octet classical-CAN frames.
//
// A Link is single-threaded and cooperative. It owns no goroutines, does
// no I/O, and never allocates once constructed: the host drives it through
// Send/SendWithID, OnFrame and Poll, and the Link calls back out through
// the Transmitter, Clock and Callbacks shims supplied at Init. Concurrent
// access to one Link must be serialised by the caller; see pkg/runner for
// a concurrent host-side wrapper.
package isotp

import (
	"github.com/canlink-io/isotp/internal/frame"
	"github.com/canlink-io/isotp/internal/pack"
)

// InvalidBS is the sendBSRemain sentinel meaning "no block-size limit in
// effect" (the peer sent BS=0 in its last Flow Control).
const InvalidBS = -1

// Link is the sole stateful entity of this package: one logical point-to-
// point ISO-TP connection. The zero value is not usable; call Init first.
type Link struct {
	// ID is a host-assigned label for logging and multiplexing. The state
	// machines below never read it.
	ID string

	sendArbitrationID uint32
	cfg               Config

	tx    Transmitter
	clock Clock
	cb    Callbacks

	sendBuffer pack.Buffer
	sendSize   int
	sendOffset int

	sendSN         uint8
	sendAwaitingFC bool
	sendBSRemain   int
	sendSTMin      uint32
	sendWFTCount   uint8
	sendTimerST    uint32
	sendTimerBS    uint32

	sendStatus         SendStatus
	sendProtocolResult ProtocolResult

	receiveBuffer pack.Buffer
	receiveSize   int
	receiveOffset int

	receiveSN      uint8
	receiveBSCount int
	receiveTimerCR uint32

	receiveStatus         ReceiveStatus
	receiveProtocolResult ProtocolResult
}

// Init zeroes a Link's state and records its buffers, arbitration ID and
// capability set. sendBuffer and receiveBuffer are borrowed for the
// lifetime of the Link; it never reallocates or replaces them.
func (l *Link) Init(sendID uint32, sendBuffer, receiveBuffer pack.Buffer, cfg Config, tx Transmitter, clock Clock, cb Callbacks) {
	id := l.ID
	*l = Link{}
	l.ID = id
	l.sendArbitrationID = sendID
	l.cfg = cfg
	l.tx = tx
	l.clock = clock
	l.cb = cb
	l.sendBuffer = sendBuffer
	l.receiveBuffer = receiveBuffer
}

// SendStatus reports the current state of the outbound half.
func (l *Link) SendStatus() SendStatus { return l.sendStatus }

// ReceiveStatus reports the current state of the inbound half.
func (l *Link) ReceiveStatus() ReceiveStatus { return l.receiveStatus }

// SendProtocolResult reports the most recent send-side protocol diagnostic.
func (l *Link) SendProtocolResult() ProtocolResult { return l.sendProtocolResult }

// ReceiveProtocolResult reports the most recent receive-side protocol
// diagnostic.
func (l *Link) ReceiveProtocolResult() ProtocolResult { return l.receiveProtocolResult }

// Poll advances a Link's timers and, if a send is in progress, emits at
// most one Consecutive Frame. The host must call Poll at least as often as
// the tightest ST-min it expects to honour, and often enough relative to
// ResponseTimeout to detect BS/CR timeouts promptly.
func (l *Link) Poll() {
	l.pollSend()
	l.pollReceive()
}

// OnFrame ingests one received frame. Frames outside [2,8] octets are
// silently dropped, per the wire format's minimum PCI+1 octet shape.
func (l *Link) OnFrame(data []byte, frameLen int) {
	if frameLen < 2 || frameLen > 8 || frameLen > len(data) {
		return
	}
	var buf [frame.MaxLen]byte
	copy(buf[:frameLen], data[:frameLen])

	switch frame.DecodePCI(buf[0]) {
	case frame.PCISingle:
		l.onSingleFrame(buf[:], frameLen)
	case frame.PCIFirst:
		l.onFirstFrame(buf[:], frameLen)
	case frame.PCIConsecutive:
		l.onConsecutiveFrame(buf[:], frameLen)
	case frame.PCIFlowControl:
		l.onFlowControl(buf[:], frameLen)
	}
}

// sendFlowControl emits a Flow Control frame on this Link's own
// arbitration ID. Shim failures are not surfaced separately: FC emission
// is best-effort, and a peer that never sees it will eventually hit its
// own BS timeout.
func (l *Link) sendFlowControl(status frame.FlowStatus, blockSize, stMin uint8) {
	var buf [frame.MaxLen]byte
	txLen := frame.EncodeFC(&buf, status, blockSize, stMin, l.cfg.FramePadding)
	_ = l.tx.SendFrame(l.sendArbitrationID, buf[:txLen])
}
