package ubx

import (
	"errors"
	"math"
	"testing"
)

func almostEqual32(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func buildNavSolPayload() []byte {
	buf := make([]byte, 52)
	ind := 0
	PutU4(buf, &ind, 123456)    // iTOW
	PutI4(buf, &ind, -42)       // fTOW
	PutI2(buf, &ind, 2200)      // week
	PutU1(buf, &ind, 3)         // gpsFix
	PutX1(buf, &ind, 0x0D)      // fixOK | wknSet | towSet
	PutI4(buf, &ind, 306895012) // ecefX, cm
	PutI4(buf, &ind, -12345678) // ecefY, cm
	PutI4(buf, &ind, 500000000) // ecefZ, cm
	PutU4(buf, &ind, 250)       // pAcc, cm
	PutI4(buf, &ind, 150)       // ecefVX, cm/s
	PutI4(buf, &ind, -75)       // ecefVY, cm/s
	PutI4(buf, &ind, 10)        // ecefVZ, cm/s
	PutU4(buf, &ind, 30)        // sAcc, cm/s
	PutU2(buf, &ind, 180)       // pDOP * 100
	PutU1(buf, &ind, 0)         // reserved
	PutU1(buf, &ind, 9)         // numSV
	PutU4(buf, &ind, 0)         // reserved
	return buf
}

func TestDecodeNavSol(t *testing.T) {
	sol, err := DecodeNavSol(buildNavSolPayload())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if sol.ITow != 123456 || sol.FTow != -42 || sol.Week != 2200 {
		t.Fatalf("time fields: %+v", sol)
	}
	if sol.GpsFix != 3 || !sol.FixOK || sol.DiffSoln || !sol.WeekValid || !sol.TowValid {
		t.Fatalf("fix flags: %+v", sol)
	}
	if sol.EcefX != 3068950.12 || sol.EcefY != -123456.78 || sol.EcefZ != 5000000.00 {
		t.Fatalf("position: %+v", sol)
	}
	if !almostEqual32(sol.PAcc, 2.5) || !almostEqual32(sol.EcefVX, 1.5) ||
		!almostEqual32(sol.EcefVY, -0.75) || !almostEqual32(sol.SAcc, 0.3) {
		t.Fatalf("velocity/accuracy: %+v", sol)
	}
	if !almostEqual32(sol.PDop, 1.8) || sol.NumSV != 9 {
		t.Fatalf("dop/sv: %+v", sol)
	}
}

func TestDecodeNavSolShort(t *testing.T) {
	if _, err := DecodeNavSol(make([]byte, 51)); err == nil {
		t.Fatal("short payload accepted")
	}
}

func buildRelPosNedPayload(version byte) []byte {
	size := 40
	if version == 1 {
		size = 64
	}
	buf := make([]byte, size)
	ind := 0

	PutU1(buf, &ind, version)
	PutU1(buf, &ind, 0)
	PutU2(buf, &ind, 7)      // refStationId
	PutU4(buf, &ind, 555000) // iTOW
	PutI4(buf, &ind, 1234)   // relPosN, cm
	PutI4(buf, &ind, -567)   // relPosE, cm
	PutI4(buf, &ind, 89)     // relPosD, cm
	if version == 1 {
		PutI4(buf, &ind, 1500)    // relPosLength, cm
		PutI4(buf, &ind, 4500000) // relPosHeading, 1e-5 deg
		ind += 4
	}
	PutI1(buf, &ind, 55) // relPosHPN, 0.1 mm
	PutI1(buf, &ind, -5) // relPosHPE
	PutI1(buf, &ind, 1)  // relPosHPD
	if version == 1 {
		PutI1(buf, &ind, 10) // relPosHPLength
	} else {
		ind++
	}
	PutU4(buf, &ind, 140) // accN, 0.1 mm
	PutU4(buf, &ind, 150) // accE
	PutU4(buf, &ind, 160) // accD
	if version == 1 {
		PutI4(buf, &ind, 170)    // accLength
		PutI4(buf, &ind, 300000) // accHeading, 1e-5 deg
		ind += 4
	}
	// fixOK | diffSoln | relPosValid | carrSoln=2 | isMoving
	PutX4(buf, &ind, 1|1<<1|1<<2|2<<3|1<<5)
	return buf
}

func TestDecodeRelPosNedV0(t *testing.T) {
	pos, err := DecodeRelPosNed(buildRelPosNedPayload(0))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if pos.RefStationID != 7 || pos.ITow != 555000 {
		t.Fatalf("header: %+v", pos)
	}
	if !almostEqual32(pos.PosN, 12.3455) { // 1234 cm + 55*0.1 mm
		t.Fatalf("posN: %v", pos.PosN)
	}
	if !almostEqual32(pos.PosE, -5.6705) {
		t.Fatalf("posE: %v", pos.PosE)
	}
	if !almostEqual32(pos.AccN, 0.014) {
		t.Fatalf("accN: %v", pos.AccN)
	}
	if pos.PosLength != 0 || pos.PosHeading != 0 {
		t.Fatalf("v1 fields set on v0 message: %+v", pos)
	}
	if !pos.FixOK || !pos.DiffSoln || !pos.RelPosValid || pos.CarrSoln != 2 || !pos.IsMoving {
		t.Fatalf("flags: %+v", pos)
	}
}

func TestDecodeRelPosNedV1(t *testing.T) {
	pos, err := DecodeRelPosNed(buildRelPosNedPayload(1))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !almostEqual32(pos.PosLength, 15.001) { // 1500 cm + 10*0.1 mm
		t.Fatalf("length: %v", pos.PosLength)
	}
	if !almostEqual32(pos.PosHeading, 45.0) {
		t.Fatalf("heading: %v", pos.PosHeading)
	}
	if !almostEqual32(pos.AccHeading, 3.0) {
		t.Fatalf("accHeading: %v", pos.AccHeading)
	}
}

func TestDecodeRelPosNedV1Short(t *testing.T) {
	// A version 1 header on a version 0 sized payload must be rejected.
	buf := buildRelPosNedPayload(0)
	buf[0] = 1
	if _, err := DecodeRelPosNed(buf); err == nil {
		t.Fatal("short v1 payload accepted")
	}
}

func TestDecodeSvin(t *testing.T) {
	buf := make([]byte, 40)
	ind := 4

	PutU4(buf, &ind, 86400000) // iTOW
	PutU4(buf, &ind, 3600)     // dur
	PutI4(buf, &ind, 306895012)
	PutI4(buf, &ind, -12345678)
	PutI4(buf, &ind, 500000000)
	PutI1(buf, &ind, 25) // meanXHP, 0.1 mm
	PutI1(buf, &ind, -3)
	PutI1(buf, &ind, 0)
	ind++
	PutU4(buf, &ind, 123) // meanAcc, 0.1 mm
	PutU4(buf, &ind, 3599)
	PutU1(buf, &ind, 1)
	PutU1(buf, &ind, 0)

	svin, err := DecodeSvin(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if svin.ITow != 86400000 || svin.Dur != 3600 || svin.Obs != 3599 {
		t.Fatalf("header: %+v", svin)
	}
	if math.Abs(svin.MeanX-3068950.1225) > 1e-6 {
		t.Fatalf("meanX: %v", svin.MeanX)
	}
	if math.Abs(svin.MeanY-(-123456.7803)) > 1e-6 {
		t.Fatalf("meanY: %v", svin.MeanY)
	}
	if !almostEqual32(svin.MeanAcc, 0.0123) {
		t.Fatalf("meanAcc: %v", svin.MeanAcc)
	}
	if !svin.Valid || svin.Active {
		t.Fatalf("flags: %+v", svin)
	}
}

func buildRawxPayload(numMeas int) []byte {
	buf := make([]byte, 16+32*numMeas)
	ind := 0

	PutR8(buf, &ind, 345600.5) // rcvTow
	PutU2(buf, &ind, 2200)     // week
	PutI1(buf, &ind, 18)       // leapS
	PutU1(buf, &ind, uint8(numMeas))
	PutX1(buf, &ind, 0x01) // leapSec valid
	ind = 16

	for i := 0; i < numMeas; i++ {
		PutR8(buf, &ind, 2.1e7+float64(i)) // prMes
		PutR8(buf, &ind, 1.1e8+float64(i)) // cpMes
		PutR4(buf, &ind, -1234.5)          // doMes
		PutU1(buf, &ind, GnssIDGPS)
		PutU1(buf, &ind, uint8(i+1)) // svId
		ind++
		PutU1(buf, &ind, 0)     // freqId
		PutU2(buf, &ind, 64500) // locktime
		PutU1(buf, &ind, 45)    // cno
		PutX1(buf, &ind, 0x05)  // prStdev
		PutX1(buf, &ind, 0x03)  // cpStdev
		PutX1(buf, &ind, 0x02)  // doStdev
		PutX1(buf, &ind, 0x07)  // prValid | cpValid | halfCycValid
		ind++
	}
	return buf
}

func TestDecodeRawx(t *testing.T) {
	raw, err := DecodeRawx(buildRawxPayload(3))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if raw.RcvTow != 345600.5 || raw.Week != 2200 || raw.Leaps != 18 {
		t.Fatalf("header: %+v", raw)
	}
	if raw.NumMeas != 3 || !raw.LeapSec || raw.ClkReset {
		t.Fatalf("flags: %+v", raw)
	}

	obs := raw.Obs[2]
	if obs.PrMes != 2.1e7+2 || obs.CpMes != 1.1e8+2 || obs.DoMes != -1234.5 {
		t.Fatalf("measurements: %+v", obs)
	}
	if obs.GnssID != GnssIDGPS || obs.SvID != 3 || obs.LockTime != 64500 || obs.Cno != 45 {
		t.Fatalf("identity: %+v", obs)
	}
	if obs.PrStdev != 5 || obs.CpStdev != 3 || obs.DoStdev != 2 {
		t.Fatalf("stdev: %+v", obs)
	}
	if !obs.PrValid || !obs.CpValid || !obs.HalfCycValid || obs.HalfCycSub {
		t.Fatalf("validity: %+v", obs)
	}
}

func TestDecodeRawxTooManyMeas(t *testing.T) {
	buf := buildRawxPayload(1)
	buf[11] = 255 // declared measurement count

	_, err := DecodeRawx(buf)
	var tooMany *ErrTooManyMeas
	if !errors.As(err, &tooMany) {
		t.Fatalf("got %v, want ErrTooManyMeas", err)
	}
	if tooMany.NumMeas != 255 {
		t.Fatalf("got count %d, want 255", tooMany.NumMeas)
	}
}

func buildNavSatPayload(numSV int) []byte {
	buf := make([]byte, 8+12*numSV)
	ind := 0

	PutU4(buf, &ind, 777000)
	PutU1(buf, &ind, 1) // version
	PutU1(buf, &ind, uint8(numSV))
	ind += 2

	for i := 0; i < numSV; i++ {
		PutU1(buf, &ind, GnssIDGLONASS)
		PutU1(buf, &ind, uint8(i+1))
		PutU1(buf, &ind, 38)  // cno
		PutI1(buf, &ind, 63)  // elev
		PutI2(buf, &ind, -45) // azim
		PutI2(buf, &ind, 21)  // prRes, 0.1 m
		// quality=5, used, health=1
		PutX4(buf, &ind, 5|1<<3|1<<4)
	}
	return buf
}

func TestDecodeNavSat(t *testing.T) {
	sat, err := DecodeNavSat(buildNavSatPayload(4))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if sat.ITow != 777000 || sat.NumSV != 4 {
		t.Fatalf("header: %+v", sat)
	}
	s := sat.Sats[1]
	if s.GnssID != GnssIDGLONASS || s.SvID != 2 || s.Cno != 38 {
		t.Fatalf("identity: %+v", s)
	}
	if s.Elev != 63 || s.Azim != -45 || !almostEqual32(s.PrRes, 2.1) {
		t.Fatalf("geometry: %+v", s)
	}
	if s.Quality != 5 || !s.Used || s.Health != 1 || s.DiffCorr {
		t.Fatalf("flags: %+v", s)
	}
}

func TestDecodeNavSatClampsDeclaredCount(t *testing.T) {
	// Payload carries 2 entries but declares 50; only the present entries
	// may be decoded.
	buf := buildNavSatPayload(2)
	buf[5] = 50

	sat, err := DecodeNavSat(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sat.NumSV != 2 {
		t.Fatalf("got numSV %d, want 2", sat.NumSV)
	}
}

func TestCfgGnssRoundTrip(t *testing.T) {
	in := CfgGnss{
		NumChHw:  32,
		NumChUse: 0xFF,
		Blocks: []GnssBlock{
			{GnssID: GnssIDGPS, Enabled: true, MinTrkCh: 6, MaxTrkCh: 16, Flags: CfgGnssGpsL1C},
			{GnssID: GnssIDBeiDou, Enabled: false, MinTrkCh: 4, MaxTrkCh: 8, Flags: CfgGnssBdsB1L},
		},
	}

	out, err := DecodeCfgGnss(EncodeCfgGnss(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.NumChHw != in.NumChHw || out.NumChUse != in.NumChUse {
		t.Fatalf("channels: %+v", out)
	}
	if len(out.Blocks) != 2 {
		t.Fatalf("got %d blocks", len(out.Blocks))
	}
	for i := range in.Blocks {
		if out.Blocks[i] != in.Blocks[i] {
			t.Fatalf("block %d: got %+v, want %+v", i, out.Blocks[i], in.Blocks[i])
		}
	}
}

func TestDecodeCfgGnssClampsBlocks(t *testing.T) {
	blocks := make([]GnssBlock, MaxGnssBlocks)
	for i := range blocks {
		blocks[i] = GnssBlock{GnssID: uint8(i)}
	}
	buf := EncodeCfgGnss(CfgGnss{Blocks: blocks})
	buf[3] = 50 // inflate declared block count

	out, err := DecodeCfgGnss(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Blocks) != MaxGnssBlocks {
		t.Fatalf("got %d blocks, want %d", len(out.Blocks), MaxGnssBlocks)
	}
}

func TestDecodeMonVer(t *testing.T) {
	buf := make([]byte, 40+2*30)
	copy(buf, "ROM CORE 3.01 (107888)")
	copy(buf[30:], "00080000")
	copy(buf[40:], "FWVER=SPG 3.01")
	copy(buf[70:], "PROTVER=18.00")

	ver, err := DecodeMonVer(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ver.SW != "ROM CORE 3.01 (107888)" {
		t.Fatalf("sw: %q", ver.SW)
	}
	if ver.HW != "00080000" {
		t.Fatalf("hw: %q", ver.HW)
	}
	if len(ver.Extensions) != 2 || ver.Extensions[1] != "PROTVER=18.00" {
		t.Fatalf("extensions: %q", ver.Extensions)
	}
}

func TestAckPayload(t *testing.T) {
	class, id := AckPayload([]byte{0x06, 0x8A})
	if class != ClassCfg || id != CfgValsetID {
		t.Fatalf("got %02X/%02X", class, id)
	}
	if c, i := AckPayload(nil); c != 0 || i != 0 {
		t.Fatalf("empty payload: %02X/%02X", c, i)
	}
}
