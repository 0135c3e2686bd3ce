package ubx

import (
	"bytes"
	"errors"
	"fmt"
)

// Capacity bounds on repeated message groups. Messages declaring more
// entries than these are clamped (NAV-SAT, CFG-GNSS) or discarded entirely
// (RXM-RAWX), never decoded past the record's storage.
const (
	MaxRawxMeas   = 40
	MaxNavSatSVs  = 128
	MaxGnssBlocks = 10
)

var errShortPayload = errors.New("payload too short")

// NavSol is a decoded NAV-SOL navigation solution in ECEF coordinates.
// Scaled fields carry physical units (meters, m/s).
type NavSol struct {
	ITow      uint32  `json:"i_tow"` // GPS time of week, ms
	FTow      int32   `json:"f_tow"` // fractional remainder, ns
	Week      int16   `json:"week"`
	GpsFix    uint8   `json:"gps_fix"`
	FixOK     bool    `json:"fix_ok"`
	DiffSoln  bool    `json:"diff_soln"`
	WeekValid bool    `json:"week_valid"`
	TowValid  bool    `json:"tow_valid"`
	EcefX     float64 `json:"ecef_x"`  // m
	EcefY     float64 `json:"ecef_y"`  // m
	EcefZ     float64 `json:"ecef_z"`  // m
	PAcc      float32 `json:"p_acc"`   // m
	EcefVX    float32 `json:"ecef_vx"` // m/s
	EcefVY    float32 `json:"ecef_vy"` // m/s
	EcefVZ    float32 `json:"ecef_vz"` // m/s
	SAcc      float32 `json:"s_acc"`   // m/s
	PDop      float32 `json:"p_dop"`
	NumSV     uint8   `json:"num_sv"`
}

func DecodeNavSol(msg []byte) (NavSol, error) {
	if len(msg) < 52 {
		return NavSol{}, fmt.Errorf("nav-sol: %w (%d bytes)", errShortPayload, len(msg))
	}

	var sol NavSol
	ind := 0

	sol.ITow = GetU4(msg, &ind)
	sol.FTow = GetI4(msg, &ind)
	sol.Week = GetI2(msg, &ind)
	sol.GpsFix = GetU1(msg, &ind)
	flags := GetX1(msg, &ind)
	sol.FixOK = flags&0x01 != 0
	sol.DiffSoln = flags&0x02 != 0
	sol.WeekValid = flags&0x04 != 0
	sol.TowValid = flags&0x08 != 0
	sol.EcefX = float64(GetI4(msg, &ind)) / 100.0
	sol.EcefY = float64(GetI4(msg, &ind)) / 100.0
	sol.EcefZ = float64(GetI4(msg, &ind)) / 100.0
	sol.PAcc = float32(GetU4(msg, &ind)) / 100.0
	sol.EcefVX = float32(GetI4(msg, &ind)) / 100.0
	sol.EcefVY = float32(GetI4(msg, &ind)) / 100.0
	sol.EcefVZ = float32(GetI4(msg, &ind)) / 100.0
	sol.SAcc = float32(GetU4(msg, &ind)) / 100.0
	sol.PDop = float32(GetU2(msg, &ind)) * 0.01
	ind++ // reserved
	sol.NumSV = GetU1(msg, &ind)

	return sol, nil
}

// RelPosNed is a decoded NAV-RELPOSNED relative position to the RTK base in
// the north/east/down frame. Length and heading fields are only populated by
// the version 1 message layout.
type RelPosNed struct {
	RefStationID uint16  `json:"ref_station_id"`
	ITow         uint32  `json:"i_tow"`
	PosN         float32 `json:"pos_n"`       // m
	PosE         float32 `json:"pos_e"`       // m
	PosD         float32 `json:"pos_d"`       // m
	PosLength    float32 `json:"pos_length"`  // m
	PosHeading   float32 `json:"pos_heading"` // deg
	AccN         float32 `json:"acc_n"`       // m
	AccE         float32 `json:"acc_e"`       // m
	AccD         float32 `json:"acc_d"`       // m
	AccLength    float32 `json:"acc_length"`
	AccHeading   float32 `json:"acc_heading"`

	FixOK           bool  `json:"fix_ok"`
	DiffSoln        bool  `json:"diff_soln"`
	RelPosValid     bool  `json:"rel_pos_valid"`
	CarrSoln        uint8 `json:"carr_soln"`
	IsMoving        bool  `json:"is_moving"`
	RefPosMiss      bool  `json:"ref_pos_miss"`
	RefObsMiss      bool  `json:"ref_obs_miss"`
	RelPosHeadValid bool  `json:"rel_pos_head_valid"`
	RelPosNorm      bool  `json:"rel_pos_norm"`
}

func DecodeRelPosNed(msg []byte) (RelPosNed, error) {
	if len(msg) < 40 {
		return RelPosNed{}, fmt.Errorf("nav-relposned: %w (%d bytes)", errShortPayload, len(msg))
	}

	var pos RelPosNed
	ind := 0

	version := GetU1(msg, &ind)
	GetU1(msg, &ind) // reserved
	if version == 1 && len(msg) < 64 {
		return RelPosNed{}, fmt.Errorf("nav-relposned v1: %w (%d bytes)", errShortPayload, len(msg))
	}

	pos.RefStationID = GetU2(msg, &ind)
	pos.ITow = GetU4(msg, &ind)
	pos.PosN = float32(GetI4(msg, &ind)) / 100.0
	pos.PosE = float32(GetI4(msg, &ind)) / 100.0
	pos.PosD = float32(GetI4(msg, &ind)) / 100.0
	if version == 1 {
		pos.PosLength = float32(GetI4(msg, &ind)) / 100.0
		pos.PosHeading = float32(GetI4(msg, &ind)) / 100000.0
		ind += 4 // reserved
	}

	// High-precision millimeter remainders.
	pos.PosN += float32(GetI1(msg, &ind)) / 10000.0
	pos.PosE += float32(GetI1(msg, &ind)) / 10000.0
	pos.PosD += float32(GetI1(msg, &ind)) / 10000.0
	if version == 1 {
		pos.PosLength += float32(GetI1(msg, &ind)) / 10000.0
	} else {
		ind++
	}

	pos.AccN = float32(GetU4(msg, &ind)) / 10000.0
	pos.AccE = float32(GetU4(msg, &ind)) / 10000.0
	pos.AccD = float32(GetU4(msg, &ind)) / 10000.0
	if version == 1 {
		pos.AccLength = float32(GetI4(msg, &ind)) / 10000.0
		pos.AccHeading = float32(GetI4(msg, &ind)) / 100000.0
		ind += 4 // reserved
	}

	flags := GetX4(msg, &ind)
	pos.FixOK = flags>>0&1 != 0
	pos.DiffSoln = flags>>1&1 != 0
	pos.RelPosValid = flags>>2&1 != 0
	pos.CarrSoln = uint8(flags >> 3 & 3)
	pos.IsMoving = flags>>5&1 != 0
	pos.RefPosMiss = flags>>6&1 != 0
	pos.RefObsMiss = flags>>7&1 != 0
	pos.RelPosHeadValid = flags>>8&1 != 0
	pos.RelPosNorm = flags>>9&1 != 0

	return pos, nil
}

// Svin is a decoded NAV-SVIN survey-in status message.
type Svin struct {
	ITow    uint32  `json:"i_tow"`
	Dur     uint32  `json:"dur"`      // observation time, s
	MeanX   float64 `json:"mean_x"`   // m, ECEF
	MeanY   float64 `json:"mean_y"`   // m, ECEF
	MeanZ   float64 `json:"mean_z"`   // m, ECEF
	MeanAcc float32 `json:"mean_acc"` // m
	Obs     uint32  `json:"obs"`
	Valid   bool    `json:"valid"`
	Active  bool    `json:"active"`
}

func DecodeSvin(msg []byte) (Svin, error) {
	if len(msg) < 40 {
		return Svin{}, fmt.Errorf("nav-svin: %w (%d bytes)", errShortPayload, len(msg))
	}

	var svin Svin
	ind := 4 // version + reserved

	svin.ITow = GetU4(msg, &ind)
	svin.Dur = GetU4(msg, &ind)
	svin.MeanX = float64(GetI4(msg, &ind)) / 100.0
	svin.MeanY = float64(GetI4(msg, &ind)) / 100.0
	svin.MeanZ = float64(GetI4(msg, &ind)) / 100.0
	svin.MeanX += float64(GetI1(msg, &ind)) / 10000.0
	svin.MeanY += float64(GetI1(msg, &ind)) / 10000.0
	svin.MeanZ += float64(GetI1(msg, &ind)) / 10000.0
	ind++ // reserved
	svin.MeanAcc = float32(GetU4(msg, &ind)) / 10000.0
	svin.Obs = GetU4(msg, &ind)
	svin.Valid = GetU1(msg, &ind) != 0
	svin.Active = GetU1(msg, &ind) != 0

	return svin, nil
}

// RawxObs is one raw measurement inside an RXM-RAWX message.
type RawxObs struct {
	PrMes        float64 `json:"pr_mes"` // pseudorange, m
	CpMes        float64 `json:"cp_mes"` // carrier phase, cycles
	DoMes        float32 `json:"do_mes"` // doppler, Hz
	GnssID       uint8   `json:"gnss_id"`
	SvID         uint8   `json:"sv_id"`
	FreqID       uint8   `json:"freq_id"`
	LockTime     uint16  `json:"lock_time"` // ms
	Cno          uint8   `json:"cno"`       // dBHz
	PrStdev      uint8   `json:"pr_stdev"`
	CpStdev      uint8   `json:"cp_stdev"`
	DoStdev      uint8   `json:"do_stdev"`
	PrValid      bool    `json:"pr_valid"`
	CpValid      bool    `json:"cp_valid"`
	HalfCycValid bool    `json:"half_cyc_valid"`
	HalfCycSub   bool    `json:"half_cyc_sub"`
}

// Rawx is a decoded RXM-RAWX raw measurement message (message version 0x01).
type Rawx struct {
	RcvTow   float64 `json:"rcv_tow"` // s
	Week     uint16  `json:"week"`
	Leaps    int8    `json:"leaps"` // s
	NumMeas  uint8   `json:"num_meas"`
	LeapSec  bool    `json:"leap_sec"`
	ClkReset bool    `json:"clk_reset"`

	Obs [MaxRawxMeas]RawxObs `json:"obs"`
}

// ErrTooManyMeas is returned when an RXM-RAWX message declares more
// measurements than Rawx can store. The whole message is discarded in that
// case; truncating raw observations would silently bias anything computed
// from them.
type ErrTooManyMeas struct {
	NumMeas int
}

func (e *ErrTooManyMeas) Error() string {
	return fmt.Sprintf("too many raw measurements to store in buffer: %d", e.NumMeas)
}

func DecodeRawx(msg []byte) (Rawx, error) {
	if len(msg) < 16 {
		return Rawx{}, fmt.Errorf("rxm-rawx: %w (%d bytes)", errShortPayload, len(msg))
	}

	var raw Rawx
	ind := 0

	raw.RcvTow = GetR8(msg, &ind)
	raw.Week = GetU2(msg, &ind)
	raw.Leaps = GetI1(msg, &ind)
	raw.NumMeas = GetU1(msg, &ind)
	flags := GetX1(msg, &ind)
	raw.LeapSec = flags&0x01 != 0
	raw.ClkReset = flags&0x02 != 0

	if int(raw.NumMeas) > MaxRawxMeas {
		return Rawx{}, &ErrTooManyMeas{NumMeas: int(raw.NumMeas)}
	}
	if len(msg) < 16+32*int(raw.NumMeas) {
		return Rawx{}, fmt.Errorf("rxm-rawx: %w (%d bytes for %d measurements)",
			errShortPayload, len(msg), raw.NumMeas)
	}

	ind = 16
	for i := 0; i < int(raw.NumMeas); i++ {
		o := &raw.Obs[i]
		o.PrMes = GetR8(msg, &ind)
		o.CpMes = GetR8(msg, &ind)
		o.DoMes = GetR4(msg, &ind)
		o.GnssID = GetU1(msg, &ind)
		o.SvID = GetU1(msg, &ind)
		ind++ // reserved (sigId on newer receivers)
		o.FreqID = GetU1(msg, &ind)
		o.LockTime = GetU2(msg, &ind)
		o.Cno = GetU1(msg, &ind)
		o.PrStdev = GetX1(msg, &ind) & 0x0F
		o.CpStdev = GetX1(msg, &ind) & 0x0F
		o.DoStdev = GetX1(msg, &ind) & 0x0F
		trk := GetX1(msg, &ind)
		o.PrValid = trk&0x01 != 0
		o.CpValid = trk&0x02 != 0
		o.HalfCycValid = trk&0x04 != 0
		o.HalfCycSub = trk&0x08 != 0
		ind++ // reserved
	}

	return raw, nil
}

// NavSatInfo is one satellite entry inside a NAV-SAT message.
type NavSatInfo struct {
	GnssID   uint8   `json:"gnss_id"`
	SvID     uint8   `json:"sv_id"`
	Cno      uint8   `json:"cno"`    // dBHz
	Elev     int8    `json:"elev"`   // deg
	Azim     int16   `json:"azim"`   // deg
	PrRes    float32 `json:"pr_res"` // m
	Quality  uint8   `json:"quality"`
	Used     bool    `json:"used"`
	Health   uint8   `json:"health"`
	DiffCorr bool    `json:"diff_corr"`
}

// NavSat is a decoded NAV-SAT satellite information message. NumSV is
// clamped to the record capacity and to the entries actually present in the
// payload.
type NavSat struct {
	ITow  uint32 `json:"i_tow"`
	NumSV uint8  `json:"num_sv"`

	Sats [MaxNavSatSVs]NavSatInfo `json:"sats"`
}

func DecodeNavSat(msg []byte) (NavSat, error) {
	if len(msg) < 8 {
		return NavSat{}, fmt.Errorf("nav-sat: %w (%d bytes)", errShortPayload, len(msg))
	}

	var sat NavSat
	ind := 0

	sat.ITow = GetU4(msg, &ind)
	GetU1(msg, &ind) // version
	sat.NumSV = GetU1(msg, &ind)
	ind += 2 // reserved

	if int(sat.NumSV) > MaxNavSatSVs {
		sat.NumSV = MaxNavSatSVs
	}
	if avail := (len(msg) - 8) / 12; int(sat.NumSV) > avail {
		sat.NumSV = uint8(avail)
	}

	for i := 0; i < int(sat.NumSV); i++ {
		s := &sat.Sats[i]
		s.GnssID = GetU1(msg, &ind)
		s.SvID = GetU1(msg, &ind)
		s.Cno = GetU1(msg, &ind)
		s.Elev = GetI1(msg, &ind)
		s.Azim = GetI2(msg, &ind)
		s.PrRes = float32(GetI2(msg, &ind)) * 0.1
		flags := GetX4(msg, &ind)
		s.Quality = uint8(flags >> 0 & 0x07)
		s.Used = flags>>3&0x01 != 0
		s.Health = uint8(flags >> 4 & 0x03)
		s.DiffCorr = flags>>6&0x01 != 0
	}

	return sat, nil
}

// GnssBlock describes one constellation entry of a CFG-GNSS message.
type GnssBlock struct {
	GnssID   uint8  `json:"gnss_id"`
	Enabled  bool   `json:"enabled"`
	MinTrkCh uint8  `json:"min_trk_ch"`
	MaxTrkCh uint8  `json:"max_trk_ch"`
	Flags    uint32 `json:"flags"` // sigCfgMask
}

// CfgGnss is the GNSS constellation configuration, both as decoded from the
// receiver and as supplied to the CFG-GNSS setter.
type CfgGnss struct {
	NumChHw  uint8 `json:"num_ch_hw"`
	NumChUse uint8 `json:"num_ch_use"`

	Blocks []GnssBlock `json:"blocks"`
}

func DecodeCfgGnss(msg []byte) (CfgGnss, error) {
	if len(msg) < 4 {
		return CfgGnss{}, fmt.Errorf("cfg-gnss: %w (%d bytes)", errShortPayload, len(msg))
	}

	var cfg CfgGnss
	ind := 0

	GetU1(msg, &ind) // version
	cfg.NumChHw = GetU1(msg, &ind)
	cfg.NumChUse = GetU1(msg, &ind)
	numBlocks := int(GetU1(msg, &ind))

	if numBlocks > MaxGnssBlocks {
		numBlocks = MaxGnssBlocks
	}
	if avail := (len(msg) - 4) / 8; numBlocks > avail {
		numBlocks = avail
	}

	for i := 0; i < numBlocks; i++ {
		var b GnssBlock
		b.GnssID = GetU1(msg, &ind)
		b.MinTrkCh = GetU1(msg, &ind)
		b.MaxTrkCh = GetU1(msg, &ind)
		GetU1(msg, &ind) // reserved
		flags := GetX4(msg, &ind)
		b.Enabled = flags&1 != 0
		b.Flags = flags >> 16 & 0xFF
		cfg.Blocks = append(cfg.Blocks, b)
	}

	return cfg, nil
}

// EncodeCfgGnss packs a CfgGnss into a CFG-GNSS payload. The block count
// must already be validated against MaxGnssBlocks.
func EncodeCfgGnss(cfg CfgGnss) []byte {
	buf := make([]byte, 4+8*len(cfg.Blocks))
	ind := 0

	PutU1(buf, &ind, 0) // version
	PutU1(buf, &ind, cfg.NumChHw)
	PutU1(buf, &ind, cfg.NumChUse)
	PutU1(buf, &ind, uint8(len(cfg.Blocks)))

	for _, b := range cfg.Blocks {
		PutU1(buf, &ind, b.GnssID)
		PutU1(buf, &ind, b.MinTrkCh)
		PutU1(buf, &ind, b.MaxTrkCh)
		PutU1(buf, &ind, 0)
		flags := uint32(0)
		if b.Enabled {
			flags = 1
		}
		flags |= b.Flags << 16
		PutX4(buf, &ind, flags)
	}

	return buf
}

// MonVer is a decoded MON-VER receiver version report.
type MonVer struct {
	SW         string   `json:"sw"`
	HW         string   `json:"hw"`
	Extensions []string `json:"extensions"`
}

func DecodeMonVer(msg []byte) (MonVer, error) {
	if len(msg) < 40 {
		return MonVer{}, fmt.Errorf("mon-ver: %w (%d bytes)", errShortPayload, len(msg))
	}

	ver := MonVer{
		SW: cstr(msg[:30]),
		HW: cstr(msg[30:40]),
	}
	for ind := 40; ind+30 <= len(msg); ind += 30 {
		ver.Extensions = append(ver.Extensions, cstr(msg[ind:ind+30]))
	}
	return ver, nil
}

// AckPayload reports the class/id the receiver is acknowledging. It is
// decoded for diagnostics but not matched against the outstanding command:
// at most one command is ever in flight, so ordering alone pairs them.
func AckPayload(msg []byte) (class, id byte) {
	if len(msg) < 2 {
		return 0, 0
	}
	return msg[0], msg[1]
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
