// Package virtual implements a TCP-transported virtual CAN bus, primarily
// for tests and examples that need two or more links wired back-to-back
// without real CAN hardware. A small broker server accepts connections and
// relays frames between them (see https://github.com/windelbouwman/virtualcan
// for a compatible broker protocol).
package virtual

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/canlink-io/isotp/pkg/can"
)

func init() {
	can.RegisterInterface("virtual", NewBus)
}

// Bus is a can.Bus backed by a TCP connection to a virtual CAN broker.
type Bus struct {
	log *logrus.Entry

	mu            sync.Mutex
	channel       string
	conn          net.Conn
	receiveOwn    bool
	listener      can.FrameListener
	stopChan      chan struct{}
	wg            sync.WaitGroup
	isRunning     bool
	errSubscriber bool
}

// NewBus constructs a Bus that will dial channel (e.g. "localhost:18888")
// on Connect.
func NewBus(channel string) (can.Bus, error) {
	return &Bus{
		log:      logrus.WithField("component", "can/virtual"),
		channel:  channel,
		stopChan: make(chan struct{}),
	}, nil
}

func serializeFrame(frame can.Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	if err := binary.Write(buffer, binary.BigEndian, frame); err != nil {
		return nil, err
	}
	dataBytes := buffer.Bytes()
	frameBytes := make([]byte, 4, 4+len(dataBytes))
	binary.BigEndian.PutUint32(frameBytes, uint32(len(dataBytes)))
	return append(frameBytes, dataBytes...), nil
}

func deserializeFrame(buffer []byte) (*can.Frame, error) {
	var frame can.Frame
	if err := binary.Read(bytes.NewBuffer(buffer), binary.BigEndian, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (b *Bus) Connect(...any) error {
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	b.conn = conn
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.errSubscriber && b.isRunning {
		close(b.stopChan)
		b.wg.Wait()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *Bus) Send(frame can.Frame) error {
	if b.receiveOwn && b.listener != nil {
		b.listener.Handle(frame)
	} else if b.conn == nil {
		return errors.New("can/virtual: no active connection, abort send")
	}
	if b.conn == nil {
		return nil
	}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(10 * time.Millisecond))
	_, err = b.conn.Write(frameBytes)
	return err
}

func (b *Bus) Subscribe(listener can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = listener
	if b.isRunning {
		return nil
	}
	b.wg.Add(1)
	b.isRunning = true
	b.errSubscriber = false
	b.stopChan = make(chan struct{})
	go b.receiveLoop()
	return nil
}

// SetReceiveOwn makes the bus loop a Send back to its own listener, used
// when no broker is reachable (e.g. single-process unit tests).
func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.receiveOwn = receiveOwn
}

func (b *Bus) recv() (*can.Frame, error) {
	if b.conn == nil {
		return nil, fmt.Errorf("can/virtual: no active connection, abort receive")
	}
	_ = b.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	header := make([]byte, 4)
	n, err := b.conn.Read(header)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return nil, err
	}
	if n < 4 || err != nil {
		return nil, fmt.Errorf("can/virtual: short header read: %d bytes, %w", n, err)
	}
	length := binary.BigEndian.Uint32(header)
	body := make([]byte, length)
	_ = b.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	n, err = b.conn.Read(body)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return nil, err
	}
	if n != int(length) || err != nil {
		return nil, fmt.Errorf("can/virtual: short body read: wanted %d got %d", length, n)
	}
	return deserializeFrame(body)
}

func (b *Bus) receiveLoop() {
	defer func() {
		b.isRunning = false
		b.wg.Done()
	}()
	for {
		select {
		case <-b.stopChan:
			return
		default:
			if !b.mu.TryLock() {
				continue
			}
			frame, err := b.recv()
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// no frame arrived in time, keep polling
			} else if err != nil {
				b.log.WithError(err).Warn("virtual bus receive loop stopped")
				b.errSubscriber = true
				b.mu.Unlock()
				return
			} else if b.listener != nil {
				b.listener.Handle(*frame)
			}
			b.mu.Unlock()
		}
	}
}
