package receiver

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// fakePort simulates a u-blox module behind a serial link. It tracks the
// baud rate on both ends: frames written while the link and the device
// disagree are garbled in transit and silently lost, same as real hardware.
type fakePort struct {
	mu sync.Mutex

	linkBaud   uint // what the host set via Configure
	deviceBaud uint // what the module is actually running

	// Which command family the module answers. Legacy modules ACK CFG-*
	// messages; M10 modules only answer CFG-VALSET.
	speaksLegacy bool
	speaksValset bool

	// nakAll makes the module reject every command it understands.
	nakAll bool
	// silent drops every command, answering nothing.
	silent bool

	rx         []byte   // bytes queued for the host to read
	configures []uint   // Configure calls observed
	written    [][]byte // frames received intact
}

func newFakePort(linkBaud, deviceBaud uint) *fakePort {
	return &fakePort{
		linkBaud:     linkBaud,
		deviceBaud:   deviceBaud,
		speaksLegacy: true,
	}
}

func (f *fakePort) Configure(baud uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkBaud = baud
	f.configures = append(f.configures, baud)
	return nil
}

func (f *fakePort) ReadByte() (byte, bool) {
	f.mu.Lock()
	if len(f.rx) > 0 {
		b := f.rx[0]
		f.rx = f.rx[1:]
		f.mu.Unlock()
		return b, true
	}
	f.mu.Unlock()
	time.Sleep(100 * time.Microsecond)
	return 0, false
}

func (f *fakePort) Close() error { return nil }

func (f *fakePort) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.linkBaud != f.deviceBaud || f.silent {
		return nil
	}
	if len(p) < 8 || p[0] != ubx.Sync1 || p[1] != ubx.Sync2 {
		return nil
	}
	frame := append([]byte(nil), p...)
	f.written = append(f.written, frame)

	class, id := p[2], p[3]
	payload := p[6 : len(p)-2]
	if class != ubx.ClassCfg {
		return nil
	}

	isValset := id == ubx.CfgValsetID
	if isValset && !f.speaksValset {
		return nil
	}
	if !isValset && !f.speaksLegacy {
		return nil
	}

	if f.nakAll {
		f.reply(ubx.AckNakID, class, id)
		return nil
	}

	// Apply baud rate changes carried by the command before acknowledging;
	// the answer still goes out at the old rate, like real modules do.
	switch {
	case id == ubx.CfgPrtID && len(payload) >= 12:
		f.reply(ubx.AckAckID, class, id)
		ind := 8
		f.deviceBaud = uint(ubx.GetU4(payload, &ind))
	case isValset:
		f.reply(ubx.AckAckID, class, id)
		if baud, ok := valsetBaud(payload); ok {
			f.deviceBaud = uint(baud)
		}
	default:
		f.reply(ubx.AckAckID, class, id)
	}
	return nil
}

// reply queues an ACK or NAK frame for the host. Caller holds f.mu.
func (f *fakePort) reply(ackID, class, id byte) {
	f.rx = append(f.rx, ubx.EncodeFrame(ubx.ClassAck, ackID, []byte{class, id})...)
}

// queueFrame injects an unsolicited message from the module.
func (f *fakePort) queueFrame(class, id byte, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rx = append(f.rx, ubx.EncodeFrame(class, id, payload)...)
}

func (f *fakePort) queueLine(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rx = append(f.rx, []byte(line)...)
}

// valsetBaud scans a CFG-VALSET payload for the UART1 baud rate item. Item
// value width is encoded in the key's size nibble.
func valsetBaud(payload []byte) (uint32, bool) {
	ind := 4 // version, layers, reserved
	for ind+4 <= len(payload) {
		key := ubx.GetX4(payload, &ind)
		var width int
		switch key >> 28 & 0x7 {
		case 1, 2:
			width = 1
		case 3:
			width = 2
		case 4:
			width = 4
		case 5:
			width = 8
		default:
			return 0, false
		}
		if ind+width > len(payload) {
			return 0, false
		}
		if key == ubx.KeyCfgUart1Baudrate && width == 4 {
			return ubx.GetU4(payload, &ind), true
		}
		ind += width
	}
	return 0, false
}

// newTestReceiver wires a receiver to the fake port with timing shortened
// far enough that full negotiation ladders finish in milliseconds.
func newTestReceiver(t *testing.T, f *fakePort, opts Options) *Receiver {
	t.Helper()
	if opts.Diag == nil {
		opts.Diag = func(format string, args ...any) {}
	}
	r := New(f, opts)
	r.ackWait = 20 * time.Millisecond
	r.settleDelay = time.Millisecond
	r.retryDelay = time.Millisecond
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

func TestSendWaitAck(t *testing.T) {
	f := newFakePort(115200, 115200)
	r := newTestReceiver(t, f, Options{})

	if res := r.CfgRate(100, 1, 0); res != Ack {
		t.Fatalf("got %v, want ack", res)
	}
}

func TestSendWaitNak(t *testing.T) {
	f := newFakePort(115200, 115200)
	f.nakAll = true
	r := newTestReceiver(t, f, Options{})

	if res := r.CfgRate(100, 1, 0); res != Nak {
		t.Fatalf("got %v, want nak", res)
	}
}

func TestNakDiagNamesRejectedCommand(t *testing.T) {
	f := newFakePort(115200, 115200)
	f.nakAll = true

	var diags []string
	r := newTestReceiver(t, f, Options{
		Diag: func(format string, args ...any) {
			diags = append(diags, fmt.Sprintf(format, args...))
		},
	})

	if res := r.CfgRate(100, 1, 0); res != Nak {
		t.Fatalf("got %v, want nak", res)
	}

	found := false
	for _, d := range diags {
		if strings.Contains(d, "06 08") { // CFG-RATE class/id
			found = true
		}
	}
	if !found {
		t.Fatalf("no diagnostic names the rejected command: %q", diags)
	}
}

func TestSendWaitTimeout(t *testing.T) {
	f := newFakePort(115200, 115200)
	f.silent = true
	r := newTestReceiver(t, f, Options{})

	start := time.Now()
	if res := r.CfgRate(100, 1, 0); res != Timeout {
		t.Fatalf("got %v, want timeout", res)
	}
	if time.Since(start) < r.ackWait {
		t.Fatal("returned before the ack deadline")
	}
}

func TestSendWaitDrainsStaleAck(t *testing.T) {
	f := newFakePort(115200, 115200)
	r := newTestReceiver(t, f, Options{})

	// A late answer to a command that already timed out must not satisfy
	// the next command.
	f.queueFrame(ubx.ClassAck, ubx.AckNakID, []byte{0x06, 0x08})
	waitForAckQueued(t, r)

	if res := r.CfgRate(100, 1, 0); res != Ack {
		t.Fatalf("got %v, want ack", res)
	}
}

// waitForAckQueued blocks until the receive loop has parked a notification
// in the ack channel.
func waitForAckQueued(t *testing.T, r *Receiver) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for len(r.ackCh) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ack never queued")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCallbacksDispatch(t *testing.T) {
	f := newFakePort(115200, 115200)

	solCh := make(chan ubx.NavSol, 1)
	lineCh := make(chan string, 1)
	r := newTestReceiver(t, f, Options{
		Callbacks: Callbacks{
			NavSol: func(sol ubx.NavSol) { solCh <- sol },
		},
		LineHandler: func(line string) { lineCh <- line },
	})
	_ = r

	payload := make([]byte, 52)
	ind := 47
	ubx.PutU1(payload, &ind, 12) // numSV
	f.queueFrame(ubx.ClassNav, ubx.NavSolID, payload)
	f.queueLine("$GNRMC,093045.00,A*1C\r\n")

	select {
	case sol := <-solCh:
		if sol.NumSV != 12 {
			t.Fatalf("got numSV %d, want 12", sol.NumSV)
		}
	case <-time.After(time.Second):
		t.Fatal("NAV-SOL callback never fired")
	}

	select {
	case line := <-lineCh:
		if line != "$GNRMC,093045.00,A*1C\r\n" {
			t.Fatalf("got line %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("line handler never fired")
	}
}

func TestPollWritesEmptyFrame(t *testing.T) {
	f := newFakePort(115200, 115200)
	r := newTestReceiver(t, f, Options{})

	if err := r.Poll(ubx.ClassMon, ubx.MonVerID); err != nil {
		t.Fatalf("poll: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) != 1 {
		t.Fatalf("got %d frames, want 1", len(f.written))
	}
	frame := f.written[0]
	if frame[2] != ubx.ClassMon || frame[3] != ubx.MonVerID {
		t.Fatalf("got class/id %02X/%02X", frame[2], frame[3])
	}
	if frame[4] != 0 || frame[5] != 0 {
		t.Fatal("poll frame has a payload")
	}
}

func TestPollCommandUnknownName(t *testing.T) {
	f := newFakePort(115200, 115200)
	r := newTestReceiver(t, f, Options{})

	if err := r.PollCommand("UBX_NAV_BOGUS"); err == nil {
		t.Fatal("unknown message accepted")
	}
	if err := r.PollCommand("ubx_mon_ver"); err != nil {
		t.Fatalf("case-insensitive name rejected: %v", err)
	}
}

func TestCfgGnssRejectsTooManyBlocksLocally(t *testing.T) {
	f := newFakePort(115200, 115200)

	var diags []string
	r := newTestReceiver(t, f, Options{
		Diag: func(format string, args ...any) {
			diags = append(diags, format)
		},
	})

	cfg := ubx.CfgGnss{Blocks: make([]ubx.GnssBlock, ubx.MaxGnssBlocks+1)}
	if res := r.CfgGnss(cfg); res != Nak {
		t.Fatalf("got %v, want nak", res)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) != 0 {
		t.Fatal("oversized configuration reached the wire")
	}
	if len(diags) == 0 {
		t.Fatal("no diagnostic emitted")
	}
}

func TestValsetPayloadLayout(t *testing.T) {
	f := newFakePort(115200, 115200)
	f.speaksValset = true
	r := newTestReceiver(t, f, Options{})

	vals := make([]byte, 16)
	ind := 0
	AppendUart1Baud(vals, &ind, 115200)
	AppendKeyU1(vals, &ind, ubx.KeyMsgoutNmeaGgaUart1, 1)

	if res := r.CfgValset(vals[:ind], true, true, false); res != Ack {
		t.Fatalf("got %v, want ack", res)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	payload := f.written[0][6 : len(f.written[0])-2]
	if payload[0] != 0 {
		t.Fatalf("version byte %d", payload[0])
	}
	if payload[1] != 0x03 { // ram | bbr
		t.Fatalf("layer mask %02X", payload[1])
	}
	pi := 4
	if key := ubx.GetX4(payload, &pi); key != ubx.KeyCfgUart1Baudrate {
		t.Fatalf("first key %08X", key)
	}
	if baud := ubx.GetU4(payload, &pi); baud != 115200 {
		t.Fatalf("baud value %d", baud)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	f := newFakePort(115200, 115200)
	r := New(f, Options{Diag: func(string, ...any) {}})

	r.Start()
	r.Start()
	r.Stop()
	r.Stop()
}
