package isotp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canlink-io/isotp/internal/pack"
)

// fakeBus is a Transmitter + Clock test double that records every frame it
// is asked to send and optionally delivers it straight to a peer Link,
// mimicking a back-to-back wiring through the shim boundary.
type fakeBus struct {
	ms   uint32
	sent [][]byte
	peer *Link
	fail bool
}

func (b *fakeBus) SendFrame(id uint32, data []byte) error {
	if b.fail {
		return errors.New("simulated shim failure")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.sent = append(b.sent, cp)
	if b.peer != nil {
		b.peer.OnFrame(cp, len(cp))
	}
	return nil
}

func (b *fakeBus) Milliseconds() uint32 { return b.ms }

// recorder is a Callbacks test double.
type recorder struct {
	sendDone, sendFail, recvDone, recvFail int
	lastSendFail, lastRecvFail             Result
}

func (r *recorder) SendDone(*Link) { r.sendDone++ }
func (r *recorder) SendFail(_ *Link, result Result) {
	r.sendFail++
	r.lastSendFail = result
}
func (r *recorder) ReceiveDone(*Link) { r.recvDone++ }
func (r *recorder) ReceiveFail(_ *Link, result Result) {
	r.recvFail++
	r.lastRecvFail = result
}

func newTestLink(id uint32, bufSize int) (*Link, *fakeBus, *recorder) {
	link := &Link{}
	bus := &fakeBus{}
	cb := &recorder{}
	link.Init(id, pack.NewOctetBuffer(bufSize), pack.NewOctetBuffer(bufSize), DefaultConfig(), bus, bus, cb)
	return link, bus, cb
}

// Scenario 1: SF round-trip.
func TestSingleFrameRoundTrip(t *testing.T) {
	sender, bus, cb := newTestLink(0x100, 64)
	receiver := &Link{}
	receiverBus := &fakeBus{}
	receiverCB := &recorder{}
	receiver.Init(0x200, pack.NewOctetBuffer(64), pack.NewOctetBuffer(64), DefaultConfig(), receiverBus, receiverBus, receiverCB)
	bus.peer = receiver

	result := sender.Send([]byte{0x11, 0x22, 0x33})
	assert.Equal(t, OK, result)
	assert.Equal(t, 1, cb.sendDone)
	assert.Equal(t, []byte{0x03, 0x11, 0x22, 0x33}, bus.sent[0])

	assert.Equal(t, ReceiveFull, receiver.ReceiveStatus())
	out := make([]byte, 64)
	size, rresult := receiver.Receive(out)
	assert.Equal(t, OK, rresult)
	assert.Equal(t, 3, size)
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, out[:size])
}

// Scenario 2: multi-frame 20-octet send.
func TestMultiFrameSend20Octets(t *testing.T) {
	sender, bus, cb := newTestLink(0x100, 64)
	receiver := &Link{}
	receiverBus := &fakeBus{}
	receiverCB := &recorder{}
	receiver.Init(0x200, pack.NewOctetBuffer(64), pack.NewOctetBuffer(64), DefaultConfig(), receiverBus, receiverBus, receiverCB)
	bus.peer = receiver
	receiverBus.peer = sender

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	result := sender.Send(payload)
	assert.Equal(t, OK, result)
	assert.Equal(t, SendInProgress, sender.SendStatus())
	assert.Equal(t, []byte{0x10, 0x14, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, bus.sent[0])

	// The FF triggered an FC(Continue) back from the receiver, delivered
	// synchronously to the sender within the Send call above.
	assert.Len(t, receiverBus.sent, 1)
	assert.Equal(t, byte(0x30), receiverBus.sent[0][0])
	assert.False(t, sender.sendAwaitingFC)

	for i := 0; i < 10 && sender.SendStatus() == SendInProgress; i++ {
		bus.ms += 1
		sender.Poll()
	}

	assert.Equal(t, SendIdle, sender.SendStatus())
	assert.Equal(t, 1, cb.sendDone)

	out := make([]byte, 64)
	size, rresult := receiver.Receive(out)
	assert.Equal(t, OK, rresult)
	assert.Equal(t, 20, size)
	assert.Equal(t, payload, out[:size])
	assert.Equal(t, 1, receiverCB.recvDone)
}

// Scenario 4: FC Overflow.
func TestFlowControlOverflowOnReceive(t *testing.T) {
	receiver, bus, cb := newTestLink(0x200, 100)

	var ff [8]byte
	ff[0] = 0x10 | byte(500>>8)
	ff[1] = byte(500)
	for i := 2; i < 8; i++ {
		ff[i] = byte(i)
	}
	receiver.OnFrame(ff[:], 8)

	assert.Equal(t, 1, cb.recvFail)
	assert.Equal(t, Overflow, cb.lastRecvFail)
	assert.Equal(t, ProtocolBufferOvflw, receiver.ReceiveProtocolResult())
	assert.Equal(t, ReceiveIdle, receiver.ReceiveStatus())
	assert.Len(t, bus.sent, 1)
	assert.Equal(t, byte(0x32), bus.sent[0][0])
}

// Scenario 5: wrong SN abort.
func TestWrongSequenceNumberAbortsReceive(t *testing.T) {
	receiver, _, cb := newTestLink(0x200, 64)

	ff := []byte{0x10, 20, 1, 2, 3, 4, 5, 6}
	receiver.OnFrame(ff, 8)
	assert.Equal(t, ReceiveInProgress, receiver.ReceiveStatus())

	cf1 := []byte{0x21, 7, 8, 9, 10, 11, 12, 13}
	receiver.OnFrame(cf1, 8)
	assert.Equal(t, ReceiveInProgress, receiver.ReceiveStatus())

	cf3 := []byte{0x23, 14, 15, 16, 17, 18, 19, 20}
	receiver.OnFrame(cf3, 8)

	assert.Equal(t, 1, cb.recvFail)
	assert.Equal(t, Protocol, cb.lastRecvFail)
	assert.Equal(t, ProtocolWrongSN, receiver.ReceiveProtocolResult())
	assert.Equal(t, ReceiveIdle, receiver.ReceiveStatus())
}

// Scenario 6: BS timeout.
func TestBlockSizeTimeoutAbortsSend(t *testing.T) {
	sender, bus, cb := newTestLink(0x100, 64)

	payload := make([]byte, 20)
	result := sender.Send(payload)
	assert.Equal(t, OK, result)
	assert.Equal(t, SendInProgress, sender.SendStatus())
	assert.True(t, sender.sendAwaitingFC, "no peer is wired up, so no Flow Control ever arrives")

	bus.ms += sender.cfg.ResponseTimeout + 1
	sender.Poll()

	assert.Equal(t, SendError, sender.SendStatus())
	assert.Equal(t, 1, cb.sendFail)
	assert.Equal(t, Timeout, cb.lastSendFail)
	assert.Equal(t, ProtocolTimeoutBS, sender.SendProtocolResult())
}

func TestBusyRejection(t *testing.T) {
	sender, _, _ := newTestLink(0x100, 64)
	payload := make([]byte, 20)
	assert.Equal(t, OK, sender.Send(payload))

	before := *sender
	result := sender.Send([]byte{1, 2, 3})
	assert.Equal(t, InProgress, result)
	assert.Equal(t, before, *sender)
}

func TestOverflowRejectionOnSend(t *testing.T) {
	sender, _, _ := newTestLink(0x100, 8)
	result := sender.Send(make([]byte, 9))
	assert.Equal(t, Overflow, result)
	assert.Equal(t, SendIdle, sender.SendStatus())
}

func TestResetReceiveIsIdempotent(t *testing.T) {
	receiver, _, _ := newTestLink(0x200, 64)
	receiver.OnFrame([]byte{0x03, 0x11, 0x22, 0x33}, 4)
	assert.Equal(t, ReceiveFull, receiver.ReceiveStatus())

	receiver.ResetReceive()
	first := *receiver
	receiver.ResetReceive()
	assert.Equal(t, first, *receiver)
}
