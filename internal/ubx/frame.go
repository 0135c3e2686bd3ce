package ubx

// Checksum computes the two-accumulator Fletcher checksum over data, which
// for a full frame must cover class, id, length and payload but not the sync
// bytes or the checksum bytes themselves.
func Checksum(data []byte) (ckA, ckB byte) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// EncodeFrame builds a complete frame around the given payload:
// 0xB5 0x62, class, id, little-endian length, payload, ck_a, ck_b.
// A poll is encoded by passing an empty payload.
func EncodeFrame(class, id byte, payload []byte) []byte {
	frame := make([]byte, 0, 8+len(payload))
	frame = append(frame, Sync1, Sync2, class, id,
		byte(len(payload)), byte(len(payload)>>8))
	frame = append(frame, payload...)
	ckA, ckB := Checksum(frame[2:])
	frame = append(frame, ckA, ckB)
	return frame
}
