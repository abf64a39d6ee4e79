package isotp

// Result is the call-site return code of a Link entry point.
type Result int

const (
	OK Result = iota
	Error
	InProgress
	Overflow
	WrongSN
	NoData
	Timeout
	Length
	Protocol
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Error:
		return "ERROR"
	case InProgress:
		return "INPROGRESS"
	case Overflow:
		return "OVERFLOW"
	case WrongSN:
		return "WRONG_SN"
	case NoData:
		return "NO_DATA"
	case Timeout:
		return "TIMEOUT"
	case Length:
		return "LENGTH"
	case Protocol:
		return "PROTOCOL"
	default:
		return "UNKNOWN"
	}
}

// ProtocolResult is an asynchronous protocol-level diagnostic recorded on a
// Link and surfaced through a completion callback. It has a fixed mapping
// onto the coarser Result returned at call sites.
type ProtocolResult int

const (
	ProtocolNone ProtocolResult = iota
	ProtocolTimeoutA
	ProtocolTimeoutBS
	ProtocolTimeoutCR
	ProtocolWrongSN
	ProtocolInvalidFS
	ProtocolUnexpPDU
	ProtocolWFTOvrn
	ProtocolBufferOvflw
	ProtocolError
)

func (p ProtocolResult) String() string {
	switch p {
	case ProtocolNone:
		return "NONE"
	case ProtocolTimeoutA:
		return "TIMEOUT_A"
	case ProtocolTimeoutBS:
		return "TIMEOUT_BS"
	case ProtocolTimeoutCR:
		return "TIMEOUT_CR"
	case ProtocolWrongSN:
		return "WRONG_SN"
	case ProtocolInvalidFS:
		return "INVALID_FS"
	case ProtocolUnexpPDU:
		return "UNEXP_PDU"
	case ProtocolWFTOvrn:
		return "WFT_OVRN"
	case ProtocolBufferOvflw:
		return "BUFFER_OVFLW"
	case ProtocolError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result maps a protocol diagnostic onto the Result a caller would see.
func (p ProtocolResult) Result() Result {
	switch p {
	case ProtocolNone:
		return OK
	case ProtocolTimeoutA, ProtocolTimeoutBS, ProtocolTimeoutCR:
		return Timeout
	case ProtocolBufferOvflw:
		return Overflow
	case ProtocolWrongSN, ProtocolInvalidFS, ProtocolUnexpPDU, ProtocolWFTOvrn:
		return Protocol
	default:
		return Error
	}
}

// SendStatus is the state of a Link's outbound half.
type SendStatus uint8

const (
	SendIdle SendStatus = iota
	SendInProgress
	SendError
)

func (s SendStatus) String() string {
	switch s {
	case SendIdle:
		return "IDLE"
	case SendInProgress:
		return "IN_PROGRESS"
	case SendError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ReceiveStatus is the state of a Link's inbound half.
type ReceiveStatus uint8

const (
	ReceiveIdle ReceiveStatus = iota
	ReceiveInProgress
	ReceiveFull
)

func (s ReceiveStatus) String() string {
	switch s {
	case ReceiveIdle:
		return "IDLE"
	case ReceiveInProgress:
		return "IN_PROGRESS"
	case ReceiveFull:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}
