package ubx

import (
	"encoding/binary"
	"math"
)

// Field accessors for the UBX wire format. All multi-byte fields are
// little-endian. X-typed fields carry the same encoding as the unsigned
// integer of the same width; the separate names mark call sites that treat
// the value as a bitmask rather than a number. Every accessor advances *ind
// by the field width. Callers are responsible for checking that the buffer
// is long enough for the fields they read or write (see messages.go).

func GetU1(msg []byte, ind *int) uint8 {
	v := msg[*ind]
	*ind++
	return v
}

func GetI1(msg []byte, ind *int) int8 {
	v := int8(msg[*ind])
	*ind++
	return v
}

func GetX1(msg []byte, ind *int) uint8 {
	return GetU1(msg, ind)
}

func GetU2(msg []byte, ind *int) uint16 {
	v := binary.LittleEndian.Uint16(msg[*ind:])
	*ind += 2
	return v
}

func GetI2(msg []byte, ind *int) int16 {
	return int16(GetU2(msg, ind))
}

func GetX2(msg []byte, ind *int) uint16 {
	return GetU2(msg, ind)
}

func GetU4(msg []byte, ind *int) uint32 {
	v := binary.LittleEndian.Uint32(msg[*ind:])
	*ind += 4
	return v
}

func GetI4(msg []byte, ind *int) int32 {
	return int32(GetU4(msg, ind))
}

func GetX4(msg []byte, ind *int) uint32 {
	return GetU4(msg, ind)
}

// GetR4 reinterprets the raw little-endian bit pattern as an IEEE-754 float.
func GetR4(msg []byte, ind *int) float32 {
	return math.Float32frombits(GetU4(msg, ind))
}

// GetR8 reinterprets the raw little-endian bit pattern as an IEEE-754 double.
func GetR8(msg []byte, ind *int) float64 {
	v := binary.LittleEndian.Uint64(msg[*ind:])
	*ind += 8
	return math.Float64frombits(v)
}

func PutU1(msg []byte, ind *int, data uint8) {
	msg[*ind] = data
	*ind++
}

func PutI1(msg []byte, ind *int, data int8) {
	PutU1(msg, ind, uint8(data))
}

func PutX1(msg []byte, ind *int, data uint8) {
	PutU1(msg, ind, data)
}

func PutU2(msg []byte, ind *int, data uint16) {
	binary.LittleEndian.PutUint16(msg[*ind:], data)
	*ind += 2
}

func PutI2(msg []byte, ind *int, data int16) {
	PutU2(msg, ind, uint16(data))
}

func PutX2(msg []byte, ind *int, data uint16) {
	PutU2(msg, ind, data)
}

func PutU4(msg []byte, ind *int, data uint32) {
	binary.LittleEndian.PutUint32(msg[*ind:], data)
	*ind += 4
}

func PutI4(msg []byte, ind *int, data int32) {
	PutU4(msg, ind, uint32(data))
}

func PutX4(msg []byte, ind *int, data uint32) {
	PutU4(msg, ind, data)
}

func PutR4(msg []byte, ind *int, data float32) {
	PutU4(msg, ind, math.Float32bits(data))
}

func PutR8(msg []byte, ind *int, data float64) {
	binary.LittleEndian.PutUint64(msg[*ind:], math.Float64bits(data))
	*ind += 8
}
