// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package receiver

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/gnss_receiver/internal/transport"
	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// Result is the three-way outcome of a configuration command.
type Result int

const (
	// Ack means the receiver accepted the command.
	Ack Result = iota
	// Nak means the receiver explicitly rejected the command, usually
	// because this receiver generation does not support it. Retrying the
	// same command unmodified will not help.
	Nak
	// Timeout means no ACK or NAK arrived before the deadline.
	Timeout
)

func (r Result) String() string {
	switch r {
	case Ack:
		return "ack"
	case Nak:
		return "nak"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Generation distinguishes receivers configured through the legacy CFG-*
// messages from newer ones that only take CFG-VALSET key/value sets.
type Generation int

const (
	GenLegacy Generation = iota
	GenM10
)

// Callbacks holds one optional subscriber per surfaced message type. Each is
// invoked synchronously on the receive goroutine every time the message is
// decoded, so callbacks must not block.
type Callbacks struct {
	NavSol    func(ubx.NavSol)
	RelPosNed func(ubx.RelPosNed)
	Rawx      func(ubx.Rawx)
	Svin      func(ubx.Svin)
	NavSat    func(ubx.NavSat)
	CfgGnss   func(ubx.CfgGnss)
}

// Options configures a Receiver beyond its transport.
type Options struct {
	Callbacks Callbacks

	// LineHandler receives completed newline-terminated text lines that were
	// not part of a UBX frame (NMEA sentences). Runs on the receive
	// goroutine; must not block.
	LineHandler func(line string)

	// Diag receives formatted diagnostic text, fire-and-forget.
	// Defaults to log.Printf.
	Diag func(format string, args ...any)
}

// Receiver drives a u-blox GNSS receiver over a Transport: it owns the
// receive loop and decoder state, dispatches decoded messages to callbacks,
// and provides the send-and-wait-for-ack primitive every configuration
// command is built on.
type Receiver struct {
	tr   transport.Transport
	dec  *ubx.Decoder
	cb   Callbacks
	line func(string)
	diag func(string, ...any)

	// ackCh is a single-slot rendezvous from the receive goroutine to the
	// one caller waiting in sendWait. true carries an ACK, false a NAK.
	ackCh chan bool
	// cmdMu enforces the at-most-one-command-in-flight invariant.
	cmdMu sync.Mutex

	// decReset asks the receive loop to zero the decoder before the next
	// byte. The loop is the only goroutine that touches decoder state.
	decReset atomic.Bool

	generation atomic.Int32

	printNavSol    atomic.Bool
	printRelPosNed atomic.Bool
	printRawx      atomic.Bool
	printSvin      atomic.Bool
	printNavSat    atomic.Bool
	printMonVer    atomic.Bool
	printCfgGnss   atomic.Bool

	// Negotiation timing, overridable in tests.
	ackWait     time.Duration
	settleDelay time.Duration
	retryDelay  time.Duration

	stop chan struct{}
	done chan struct{}

	startMu sync.Mutex
	running bool
}

// New creates a receiver over the given transport. Callbacks and handlers
// must be set before Start; they are not safe to change afterwards.
func New(tr transport.Transport, opts Options) *Receiver {
	diag := opts.Diag
	if diag == nil {
		diag = log.Printf
	}
	r := &Receiver{
		tr:          tr,
		cb:          opts.Callbacks,
		line:        opts.LineHandler,
		diag:        diag,
		ackCh:       make(chan bool, 1),
		ackWait:     100 * time.Millisecond,
		settleDelay: 100 * time.Millisecond,
		retryDelay:  500 * time.Millisecond,
	}
	r.dec = ubx.NewDecoder(r.handleFrame, r.handleLine)
	return r
}

// Start launches the receive loop. It is a no-op if already running.
func (r *Receiver) Start() {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.running {
		return
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true
	go r.run()
}

// Stop halts the receive loop and waits for it to exit. Safe to call more
// than once.
func (r *Receiver) Stop() {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if !r.running {
		return
	}
	close(r.stop)
	<-r.done
	r.running = false
}

// Generation reports which configuration command family the receiver spoke
// during bring-up.
func (r *Receiver) Generation() Generation {
	return Generation(r.generation.Load())
}

func (r *Receiver) run() {
	defer close(r.done)

	r.dec.Reset()
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		if r.decReset.CompareAndSwap(true, false) {
			r.dec.Reset()
		}

		b, ok := r.tr.ReadByte()
		if !ok {
			continue
		}
		r.dec.ProcessByte(b)
	}
}

// requestDecoderReset schedules a decoder reset on the receive loop. Used
// around baud changes so a partial frame from the old rate cannot wedge the
// parser.
func (r *Receiver) requestDecoderReset() {
	r.decReset.Store(true)
}

// send frames and transmits one message. An empty payload is a poll.
func (r *Receiver) send(class, id byte, payload []byte) error {
	return r.tr.Write(ubx.EncodeFrame(class, id, payload))
}

// Poll requests the receiver to emit the message with the given class/id.
func (r *Receiver) Poll(class, id byte) error {
	return r.send(class, id, nil)
}

// sendWait sends one message and blocks until the receiver acknowledges it,
// rejects it, or the timeout elapses. A negative timeout waits forever. The
// command mutex serializes callers so at most one command is outstanding;
// the next ACK/NAK frame therefore always answers this send.
func (r *Receiver) sendWait(class, id byte, payload []byte, timeout time.Duration) Result {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	// Drop a notification left over from a command that timed out and was
	// answered late.
	select {
	case <-r.ackCh:
	default:
	}

	if err := r.send(class, id, payload); err != nil {
		r.diag("ubx send %02X/%02X: %v", class, id, err)
		return Timeout
	}

	if timeout < 0 {
		if <-r.ackCh {
			return Ack
		}
		return Nak
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case wasAck := <-r.ackCh:
		if wasAck {
			return Ack
		}
		return Nak
	case <-timer.C:
		return Timeout
	}
}

func (r *Receiver) handleLine(line string) {
	if r.line != nil {
		r.line(line)
	}
}

// handleFrame dispatches one checksum-verified frame by (class, id).
// Unrecognized pairs are ignored so newer receiver firmware cannot break the
// driver. Malformed payloads of known types are dropped; only the RXM-RAWX
// over-capacity case is loud, since silence there could mask data loss.
func (r *Receiver) handleFrame(class, id byte, payload []byte) {
	switch class {
	case ubx.ClassNav:
		switch id {
		case ubx.NavSolID:
			sol, err := ubx.DecodeNavSol(payload)
			if err != nil {
				return
			}
			if r.cb.NavSol != nil {
				r.cb.NavSol(sol)
			}
			if r.printNavSol.CompareAndSwap(true, false) {
				r.printNavSolDiag(sol)
			}
		case ubx.NavRelPosNedID:
			pos, err := ubx.DecodeRelPosNed(payload)
			if err != nil {
				return
			}
			if r.cb.RelPosNed != nil {
				r.cb.RelPosNed(pos)
			}
			if r.printRelPosNed.CompareAndSwap(true, false) {
				r.printRelPosNedDiag(pos)
			}
		case ubx.NavSvinID:
			svin, err := ubx.DecodeSvin(payload)
			if err != nil {
				return
			}
			if r.cb.Svin != nil {
				r.cb.Svin(svin)
			}
			if r.printSvin.CompareAndSwap(true, false) {
				r.printSvinDiag(svin)
			}
		case ubx.NavSatID:
			sat, err := ubx.DecodeNavSat(payload)
			if err != nil {
				return
			}
			if r.cb.NavSat != nil {
				r.cb.NavSat(sat)
			}
			if r.printNavSat.CompareAndSwap(true, false) {
				r.printNavSatDiag(sat)
			}
		}

	case ubx.ClassAck:
		switch id {
		case ubx.AckAckID:
			r.notifyAck(true)
		case ubx.AckNakID:
			nakClass, nakID := ubx.AckPayload(payload)
			r.diag("receiver rejected command %02X %02X", nakClass, nakID)
			r.notifyAck(false)
		}

	case ubx.ClassRxm:
		if id == ubx.RxmRawxID {
			raw, err := ubx.DecodeRawx(payload)
			if err != nil {
				var tooMany *ubx.ErrTooManyMeas
				if errors.As(err, &tooMany) {
					r.diag("%v", err)
				}
				return
			}
			if r.cb.Rawx != nil {
				r.cb.Rawx(raw)
			}
			if r.printRawx.CompareAndSwap(true, false) {
				r.printRawxDiag(raw)
			}
		}

	case ubx.ClassCfg:
		if id == ubx.CfgGnssID {
			cfg, err := ubx.DecodeCfgGnss(payload)
			if err != nil {
				return
			}
			if r.cb.CfgGnss != nil {
				r.cb.CfgGnss(cfg)
			}
			if r.printCfgGnss.CompareAndSwap(true, false) {
				r.printCfgGnssDiag(cfg)
			}
		}

	case ubx.ClassMon:
		if id == ubx.MonVerID {
			if r.printMonVer.CompareAndSwap(true, false) {
				ver, err := ubx.DecodeMonVer(payload)
				if err != nil {
					return
				}
				r.printMonVerDiag(ver)
			}
		}
	}
}

// notifyAck hands the ACK/NAK outcome to the waiting command, if any. The
// channel holds at most one pending notification; an unsolicited second
// frame is dropped rather than blocking the receive path.
func (r *Receiver) notifyAck(wasAck bool) {
	select {
	case r.ackCh <- wasAck:
	default:
	}
}
