package isotp

import (
	"github.com/canlink-io/isotp/internal/frame"
	"github.com/canlink-io/isotp/internal/pack"
)

func (l *Link) onSingleFrame(data []byte, frameLen int) {
	if l.receiveStatus == ReceiveInProgress {
		l.receiveProtocolResult = ProtocolUnexpPDU
	} else {
		l.receiveProtocolResult = ProtocolNone
	}

	payload, err := frame.DecodeSF(data, frameLen)
	if err != nil {
		return
	}

	l.receiveBuffer.Pack(0, payload, len(payload))
	l.receiveSize = len(payload)
	l.receiveOffset = len(payload)
	l.receiveStatus = ReceiveFull
	l.cb.ReceiveDone(l)
}

func (l *Link) onFirstFrame(data []byte, frameLen int) {
	wasInProgress := l.receiveStatus == ReceiveInProgress
	if wasInProgress {
		l.receiveProtocolResult = ProtocolUnexpPDU
	} else {
		l.receiveProtocolResult = ProtocolNone
	}

	length, first6, err := frame.DecodeFF(data, frameLen)
	if err != nil {
		return
	}

	if int(length) > l.receiveBuffer.Len() {
		l.receiveProtocolResult = ProtocolBufferOvflw
		l.cb.ReceiveFail(l, Overflow)
		l.resetReceive()
		l.sendFlowControl(frame.FlowOverflow, 0, 0)
		return
	}

	l.receiveBuffer.Pack(0, first6, len(first6))
	l.receiveSize = int(length)
	l.receiveOffset = len(first6)
	l.receiveSN = 1
	l.receiveBSCount = int(l.cfg.DefaultBlockSize)
	l.sendFlowControl(frame.FlowContinue, l.cfg.DefaultBlockSize, l.cfg.DefaultSTmin)
	l.receiveTimerCR = l.clock.Milliseconds() + l.cfg.ResponseTimeout
	l.receiveStatus = ReceiveInProgress
}

func (l *Link) onConsecutiveFrame(data []byte, frameLen int) {
	if l.receiveStatus != ReceiveInProgress {
		l.receiveProtocolResult = ProtocolUnexpPDU
		return
	}

	sn := data[0] & 0x0F
	if sn != l.receiveSN {
		l.receiveProtocolResult = ProtocolWrongSN
		l.cb.ReceiveFail(l, Protocol)
		l.resetReceive()
		return
	}

	remaining := l.receiveSize - l.receiveOffset
	if remaining > 7 {
		remaining = 7
	}
	_, payload, err := frame.DecodeCF(data, frameLen, remaining)
	if err != nil {
		return
	}

	l.receiveBuffer.Pack(l.receiveOffset, payload, remaining)
	l.receiveOffset += remaining
	l.receiveSN = (l.receiveSN + 1) % 16
	l.receiveTimerCR = l.clock.Milliseconds() + l.cfg.ResponseTimeout

	if l.receiveOffset >= l.receiveSize {
		l.receiveStatus = ReceiveFull
		l.cb.ReceiveDone(l)
		return
	}

	l.receiveBSCount--
	if l.receiveBSCount <= 0 {
		l.receiveBSCount = int(l.cfg.DefaultBlockSize)
		l.sendFlowControl(frame.FlowContinue, l.cfg.DefaultBlockSize, l.cfg.DefaultSTmin)
	}
}

// pollReceive aborts a pending receive once the CR deadline has passed.
func (l *Link) pollReceive() {
	if l.receiveStatus != ReceiveInProgress {
		return
	}
	now := l.clock.Milliseconds()
	if deadlinePassed(now, l.receiveTimerCR) {
		l.receiveProtocolResult = ProtocolTimeoutCR
		l.cb.ReceiveFail(l, Timeout)
		l.resetReceive()
	}
}

// Receive copies an assembled message into out if the receive side is
// FULL. size is the full assembled length regardless of truncation; if out
// is shorter than size, only len(out) octets are copied and Overflow is
// returned. On success or overflow the receive side resets to IDLE.
func (l *Link) Receive(out []byte) (size int, result Result) {
	if l.receiveStatus != ReceiveFull {
		return 0, NoData
	}

	size = l.receiveSize
	copyLen := size
	result = OK
	if copyLen > len(out) {
		copyLen = len(out)
		result = Overflow
	}
	l.receiveBuffer.Unpack(out[:copyLen], 0, copyLen)
	l.resetReceive()
	return size, result
}

// ReceiveInPlace lends a reference to the internal receive buffer instead
// of copying. The caller MUST call ResetReceive when done with it, since
// the buffer is reused on the next receive.
func (l *Link) ReceiveInPlace() (buf pack.Buffer, size int, result Result) {
	if l.receiveStatus != ReceiveFull {
		return nil, 0, NoData
	}
	return l.receiveBuffer, l.receiveSize, OK
}

// ResetReceive returns the receive side to IDLE. Idempotent: calling it
// twice has the same effect as once.
func (l *Link) ResetReceive() {
	l.resetReceive()
}

func (l *Link) resetReceive() {
	l.receiveStatus = ReceiveIdle
	l.receiveOffset = 0
	l.receiveSize = 0
	l.receiveSN = 0
	l.receiveBSCount = 0
	l.receiveTimerCR = 0
}
