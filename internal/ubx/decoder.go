package ubx

// Buffer bounds for the decoder. A UBX payload larger than FrameBufferSize
// cannot be accumulated and is rejected during the length bytes; callers
// must size FrameBufferSize to the largest message they expect (RXM-RAWX
// dominates). NMEA lines longer than LineBufferSize are discarded.
const (
	LineBufferSize  = 256
	FrameBufferSize = 2000
)

// Decoder demultiplexes one continuous byte stream into UBX binary frames
// and NMEA text lines. It is a byte-at-a-time state machine: each byte is
// first offered to the UBX frame in progress (only while no text line is in
// progress) and falls through to line accumulation if it does not advance
// the frame. Completed frames are handed to onFrame, completed newline-
// terminated lines to onLine.
//
// A Decoder is not safe for concurrent use; exactly one goroutine (the
// receive loop) owns it.
type Decoder struct {
	onFrame func(class, id byte, payload []byte)
	onLine  func(line string)

	line     [LineBufferSize]byte
	frame    [FrameBufferSize]byte
	linePos  int
	framePos int
	class    byte
	id       byte
	ckA      byte
	ckB      byte
	length   int
}

// NewDecoder returns a decoder in the idle state. Either handler may be nil.
func NewDecoder(onFrame func(class, id byte, payload []byte), onLine func(line string)) *Decoder {
	return &Decoder{onFrame: onFrame, onLine: onLine}
}

// Reset zeroes all progress so the decoder starts hunting for a sync byte
// again. Called whenever the transport is reconfigured, so that a partial
// frame from the old baud rate cannot stall the parser.
func (d *Decoder) Reset() {
	d.linePos = 0
	d.framePos = 0
	d.class = 0
	d.id = 0
	d.ckA = 0
	d.ckB = 0
	d.length = 0
}

// Process feeds a chunk of received bytes through ProcessByte. Decoding is
// independent of how the stream is chunked.
func (d *Decoder) Process(data []byte) {
	for _, b := range data {
		d.ProcessByte(b)
	}
}

// ProcessByte consumes a single byte from the stream.
func (d *Decoder) ProcessByte(ch byte) {
	used := false

	// UBX path. Only attempted while no text line is being accumulated.
	if d.linePos == 0 {
		posLast := d.framePos

		switch {
		case d.framePos == 0:
			if ch == Sync1 {
				d.framePos++
			}
		case d.framePos == 1:
			if ch == Sync2 {
				d.framePos++
				d.ckA = 0
				d.ckB = 0
			}
		case d.framePos == 2:
			d.class = ch
			d.sum(ch)
			d.framePos++
		case d.framePos == 3:
			d.id = ch
			d.sum(ch)
			d.framePos++
		case d.framePos == 4:
			d.length = int(ch)
			d.sum(ch)
			d.framePos++
		case d.framePos == 5:
			length := d.length | int(ch)<<8
			// A declared payload that cannot fit the frame buffer is not a
			// frame we can ever complete; fail the transition so the byte
			// falls through and the decoder resynchronizes.
			if length <= FrameBufferSize {
				d.length = length
				d.sum(ch)
				d.framePos++
			}
		case d.framePos-6 < d.length:
			d.frame[d.framePos-6] = ch
			d.sum(ch)
			d.framePos++
		case d.framePos-6 == d.length:
			if ch == d.ckA {
				d.framePos++
			}
		case d.framePos-6 == d.length+1:
			if ch == d.ckB {
				if d.onFrame != nil {
					d.onFrame(d.class, d.id, d.frame[:d.length])
				}
				d.framePos = 0
			}
		}

		if posLast != d.framePos {
			used = true
		} else {
			// The byte did not advance the frame: drop any partial frame and
			// let the byte fall through to line accumulation.
			d.framePos = 0
		}
	}

	// NMEA path.
	if !used {
		d.line[d.linePos] = ch
		d.linePos++
		if d.linePos == LineBufferSize {
			// Pathological stream with no terminator; discard and keep going.
			d.linePos = 0
		}

		if d.linePos > 0 && d.line[d.linePos-1] == '\n' {
			line := string(d.line[:d.linePos])
			d.linePos = 0
			if d.onLine != nil {
				d.onLine(line)
			}
		}
	}
}

func (d *Decoder) sum(ch byte) {
	d.ckA += ch
	d.ckB += d.ckA
}
