// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"fmt"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// Transport is the serial link to the GNSS receiver. The receiver driver
// never assumes a specific hardware binding; anything that can move bytes
// with a bounded read wait satisfies it.
//
// ReadByte must return ok=false within a short, bounded time when no byte
// arrives, so the receive loop can observe shutdown requests. Configure
// reprograms the link speed (always 8 data bits, no parity, 1 stop bit) and
// may be called while another goroutine is blocked in ReadByte.
type Transport interface {
	Configure(baud uint) error
	ReadByte() (byte, bool)
	Write(p []byte) error
	Close() error
}

// readTimeoutMs bounds a single blocking read. jacobsa/go-serial maps this
// onto termios VTIME, which counts in tenths of a second, so 100 ms is the
// smallest usable value.
const readTimeoutMs = 100

// SerialPort is a Transport over a local serial device.
type SerialPort struct {
	device string

	mu   sync.Mutex
	baud uint
	port io.ReadWriteCloser
}

// OpenSerial opens the serial device at the given baud rate, 8N1.
func OpenSerial(device string, baud uint) (*SerialPort, error) {
	s := &SerialPort{device: device}
	if err := s.Configure(baud); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure reopens the device at a new baud rate. The previous descriptor
// is closed first; a reader blocked on it sees a failed read and retries on
// the new port.
func (s *SerialPort) Configure(baud uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:              s.device,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: readTimeoutMs,
	})
	if err != nil {
		return fmt.Errorf("serial open %s at %d baud: %w", s.device, baud, err)
	}

	s.baud = baud
	s.port = port
	return nil
}

// ReadByte reads a single byte, returning ok=false if none arrived within
// the read timeout or the port is being reconfigured.
func (s *SerialPort) ReadByte() (byte, bool) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, false
	}

	var buf [1]byte
	n, err := port.Read(buf[:])
	if err != nil || n != 1 {
		return 0, false
	}
	return buf[0], true
}

// Write sends the whole buffer. The write returns once the kernel has
// accepted the bytes; the driver keeps no shared transmit buffer, so there
// is no separate wait for transmit completion.
func (s *SerialPort) Write(p []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return fmt.Errorf("serial write %s: port closed", s.device)
	}

	for len(p) > 0 {
		n, err := port.Write(p)
		if err != nil {
			return fmt.Errorf("serial write %s: %w", s.device, err)
		}
		p = p[n:]
	}
	return nil
}

// Close releases the device.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
