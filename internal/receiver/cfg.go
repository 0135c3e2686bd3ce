// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package receiver

import (
	"math"

	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// Configuration setters. Each one packs the caller's fields into the
// documented fixed payload layout, sends the message and waits for the
// receiver's answer, returning the three-way Ack/Nak/Timeout result.

// PortConfig selects the protocols accepted and emitted on UART1. The port
// always runs 8 data bits, no parity, 1 stop bit, no txready function.
type PortConfig struct {
	Baudrate uint32

	InUBX   bool
	InNMEA  bool
	InRTCM2 bool
	InRTCM3 bool

	OutUBX   bool
	OutNMEA  bool
	OutRTCM3 bool
}

// CfgPrtUART sets the UART1 port configuration (CFG-PRT).
func (r *Receiver) CfgPrtUART(cfg PortConfig) Result {
	buf := make([]byte, 20)
	ind := 0

	ubx.PutU1(buf, &ind, 1) // port id for UART1
	ubx.PutU1(buf, &ind, 0)
	ubx.PutX2(buf, &ind, 0) // txready disabled

	var mode uint32
	mode |= 3 << 6  // 8 data bits
	mode |= 4 << 9  // no parity
	mode |= 0 << 12 // 1 stop bit
	ubx.PutX4(buf, &ind, mode)
	ubx.PutU4(buf, &ind, cfg.Baudrate)

	var inProto uint16
	inProto |= boolBit(cfg.InUBX) << 0
	inProto |= boolBit(cfg.InNMEA) << 1
	inProto |= boolBit(cfg.InRTCM2) << 2
	inProto |= boolBit(cfg.InRTCM3) << 5
	ubx.PutX2(buf, &ind, inProto)

	var outProto uint16
	outProto |= boolBit(cfg.OutUBX) << 0
	outProto |= boolBit(cfg.OutNMEA) << 1
	outProto |= boolBit(cfg.OutRTCM3) << 5
	ubx.PutX2(buf, &ind, outProto)

	ubx.PutX2(buf, &ind, 0) // no extended timeout
	ubx.PutU1(buf, &ind, 0)
	ubx.PutU1(buf, &ind, 0)

	return r.sendWait(ubx.ClassCfg, ubx.CfgPrtID, buf[:ind], r.ackWait)
}

// CfgRate sets the measurement rate in milliseconds, the ratio of
// measurements per navigation solution, and the time reference
// (0 UTC, 1 GPS, 2 GLONASS, 3 BeiDou, 4 Galileo).
func (r *Receiver) CfgRate(measRateMs, navRate, timeRef uint16) Result {
	buf := make([]byte, 6)
	ind := 0

	ubx.PutU2(buf, &ind, measRateMs)
	ubx.PutU2(buf, &ind, navRate)
	ubx.PutU2(buf, &ind, timeRef)

	return r.sendWait(ubx.ClassCfg, ubx.CfgRateID, buf[:ind], r.ackWait)
}

// CfgMsg sets the output rate for one message type on all ports.
// rate 0 disables the message.
func (r *Receiver) CfgMsg(msgClass, msgID, rate byte) Result {
	buf := make([]byte, 8)
	ind := 0

	ubx.PutU1(buf, &ind, msgClass)
	ubx.PutU1(buf, &ind, msgID)
	for i := 0; i < 6; i++ {
		ubx.PutU1(buf, &ind, rate)
	}

	return r.sendWait(ubx.ClassCfg, ubx.CfgMsgID, buf[:ind], r.ackWait)
}

// Nav5Config carries the CFG-NAV5 navigation engine settings. Apply* flags
// select which groups of fields the receiver should take from this message.
type Nav5Config struct {
	ApplyDyn            bool
	ApplyMinEl          bool
	ApplyPosFixMode     bool
	ApplyPosMask        bool
	ApplyTimeMask       bool
	ApplyStaticHoldMask bool
	ApplyDGPS           bool
	ApplyCno            bool
	ApplyUTC            bool

	DynModel          uint8 // dynamic platform model, e.g. 4 = automotive
	FixMode           uint8
	FixedAlt          float64 // m
	FixedAltVar       float64 // m^2
	MinElev           int8    // deg
	PDop              float32
	TDop              float32
	PAcc              uint16 // m
	TAcc              uint16 // m
	StaticHoldThres   uint8  // cm/s
	DgnssTimeout      uint8  // s
	CnoTresNumSat     uint8
	CnoTres           uint8  // dBHz
	StaticHoldMaxDist uint16 // m
	UTCStandard       uint8
}

// CfgNav5 sets the navigation engine configuration (CFG-NAV5).
func (r *Receiver) CfgNav5(cfg Nav5Config) Result {
	buf := make([]byte, 36)
	ind := 0

	var mask uint16
	mask |= boolBit(cfg.ApplyDyn) << 0
	mask |= boolBit(cfg.ApplyMinEl) << 1
	mask |= boolBit(cfg.ApplyPosFixMode) << 2
	mask |= boolBit(cfg.ApplyPosMask) << 4
	mask |= boolBit(cfg.ApplyTimeMask) << 5
	mask |= boolBit(cfg.ApplyStaticHoldMask) << 6
	mask |= boolBit(cfg.ApplyDGPS) << 7
	mask |= boolBit(cfg.ApplyCno) << 8
	mask |= boolBit(cfg.ApplyUTC) << 10

	ubx.PutX2(buf, &ind, mask)
	ubx.PutU1(buf, &ind, cfg.DynModel)
	ubx.PutU1(buf, &ind, cfg.FixMode)
	ubx.PutI4(buf, &ind, int32(cfg.FixedAlt*100.0))
	ubx.PutU4(buf, &ind, uint32(cfg.FixedAltVar*10000.0))
	ubx.PutI1(buf, &ind, cfg.MinElev)
	ubx.PutU1(buf, &ind, 0)
	ubx.PutU2(buf, &ind, uint16(cfg.PDop*10.0))
	ubx.PutU2(buf, &ind, uint16(cfg.TDop*10.0))
	ubx.PutU2(buf, &ind, cfg.PAcc)
	ubx.PutU2(buf, &ind, cfg.TAcc)
	ubx.PutU1(buf, &ind, cfg.StaticHoldThres)
	ubx.PutU1(buf, &ind, cfg.DgnssTimeout)
	ubx.PutU1(buf, &ind, cfg.CnoTresNumSat)
	ubx.PutU1(buf, &ind, cfg.CnoTres)
	ubx.PutU1(buf, &ind, 0)
	ubx.PutU1(buf, &ind, 0)
	ubx.PutU2(buf, &ind, cfg.StaticHoldMaxDist)
	ubx.PutU1(buf, &ind, cfg.UTCStandard)
	for i := 0; i < 5; i++ {
		ubx.PutU1(buf, &ind, 0)
	}

	return r.sendWait(ubx.ClassCfg, ubx.CfgNav5ID, buf[:ind], r.ackWait)
}

// TP5Config carries the CFG-TP5 time pulse settings for time pulse 0.
type TP5Config struct {
	AntCableDelay     int16  // ns
	RFGroupDelay      int16  // ns
	FreqPeriod        uint32 // Hz or us depending on IsFreq
	FreqPeriodLock    uint32
	PulseLenRatio     uint32
	PulseLenRatioLock uint32
	UserConfigDelay   int32 // ns

	Active         bool
	LockGnssFreq   bool
	LockedOtherSet bool
	IsFreq         bool
	IsLength       bool
	AlignToTow     bool
	Polarity       bool
	GridUtcGnss    uint8
	SyncMode       uint8
}

// CfgTP5 sets the time pulse configuration (CFG-TP5).
func (r *Receiver) CfgTP5(cfg TP5Config) Result {
	buf := make([]byte, 32)
	ind := 0

	ubx.PutU1(buf, &ind, 0) // time pulse 0
	ubx.PutU1(buf, &ind, 1) // message version
	ubx.PutU1(buf, &ind, 0)
	ubx.PutU1(buf, &ind, 0)
	ubx.PutI2(buf, &ind, cfg.AntCableDelay)
	ubx.PutI2(buf, &ind, cfg.RFGroupDelay)
	ubx.PutU4(buf, &ind, cfg.FreqPeriod)
	ubx.PutU4(buf, &ind, cfg.FreqPeriodLock)
	ubx.PutU4(buf, &ind, cfg.PulseLenRatio)
	ubx.PutU4(buf, &ind, cfg.PulseLenRatioLock)
	ubx.PutI4(buf, &ind, cfg.UserConfigDelay)

	var mask uint32
	mask |= uint32(boolBit(cfg.Active)) << 0
	mask |= uint32(boolBit(cfg.LockGnssFreq)) << 1
	mask |= uint32(boolBit(cfg.LockedOtherSet)) << 2
	mask |= uint32(boolBit(cfg.IsFreq)) << 3
	mask |= uint32(boolBit(cfg.IsLength)) << 4
	mask |= uint32(boolBit(cfg.AlignToTow)) << 5
	mask |= uint32(boolBit(cfg.Polarity)) << 6
	mask |= uint32(cfg.GridUtcGnss&0x0F) << 7
	mask |= uint32(cfg.SyncMode&0x07) << 8
	ubx.PutX4(buf, &ind, mask)

	return r.sendWait(ubx.ClassCfg, ubx.CfgTp5ID, buf[:ind], r.ackWait)
}

// TMode3Config carries the CFG-TMODE3 time mode settings used for base
// station setup: disabled, survey-in, or a fixed position given either in
// ECEF meters or, when LLA is set, in degrees latitude/longitude and meters
// altitude.
type TMode3Config struct {
	Mode uint8 // 0 disabled, 1 survey-in, 2 fixed
	LLA  bool

	// ECEF X/Y/Z in meters, or latitude/longitude in degrees and altitude
	// in meters when LLA is set.
	EcefXOrLat float64
	EcefYOrLon float64
	EcefZOrAlt float64

	FixedPosAcc  float32 // m
	SvinMinDur   uint32  // s
	SvinAccLimit float32 // m
}

// CfgTMode3 sets the time mode configuration (CFG-TMODE3).
func (r *Receiver) CfgTMode3(cfg TMode3Config) Result {
	buf := make([]byte, 40)
	ind := 0

	ubx.PutU1(buf, &ind, 0) // message version
	ubx.PutU1(buf, &ind, 0)
	flags := uint16(boolBit(cfg.LLA))<<8 | uint16(cfg.Mode)
	ubx.PutX2(buf, &ind, flags)

	// The position is split into a coarse part and a high-precision
	// remainder, with different scaling for the LLA and ECEF encodings.
	var x, y, z int32
	var xHp, yHp, zHp int8
	if cfg.LLA {
		x = int32(math.Round(cfg.EcefXOrLat * 1e7))
		y = int32(math.Round(cfg.EcefYOrLon * 1e7))
		z = int32(math.Round(cfg.EcefZOrAlt * 1e2))
		xHp = int8((cfg.EcefXOrLat - float64(x)*1e-7) * 1e9)
		yHp = int8((cfg.EcefYOrLon - float64(y)*1e-7) * 1e9)
		zHp = int8((cfg.EcefZOrAlt - float64(z)*1e-2) * 1e4)
	} else {
		x = int32(cfg.EcefXOrLat * 1e2)
		y = int32(cfg.EcefYOrLon * 1e2)
		z = int32(cfg.EcefZOrAlt * 1e2)
		xHp = int8((cfg.EcefXOrLat - float64(x)*1e-2) * 1e4)
		yHp = int8((cfg.EcefYOrLon - float64(y)*1e-2) * 1e4)
		zHp = int8((cfg.EcefZOrAlt - float64(z)*1e-2) * 1e4)
	}

	ubx.PutI4(buf, &ind, x)
	ubx.PutI4(buf, &ind, y)
	ubx.PutI4(buf, &ind, z)
	ubx.PutI1(buf, &ind, xHp)
	ubx.PutI1(buf, &ind, yHp)
	ubx.PutI1(buf, &ind, zHp)
	ubx.PutU1(buf, &ind, 0)
	ubx.PutU4(buf, &ind, uint32(cfg.FixedPosAcc*1e4))
	ubx.PutU4(buf, &ind, cfg.SvinMinDur)
	ubx.PutU4(buf, &ind, uint32(cfg.SvinAccLimit*1e4))
	for i := 0; i < 8; i++ {
		ubx.PutU1(buf, &ind, 0)
	}

	return r.sendWait(ubx.ClassCfg, ubx.CfgTmode3ID, buf[:ind], r.ackWait)
}

// CfgSections selects which configuration sections a CFG-CFG operation
// applies to.
type CfgSections struct {
	IOPort   bool
	MsgConf  bool
	InfMsg   bool
	NavConf  bool
	RxmConf  bool
	SenConf  bool
	RinvConf bool
	AntConf  bool
	LogConf  bool
	FtsConf  bool
}

func (s CfgSections) mask() uint32 {
	var m uint32
	m |= uint32(boolBit(s.IOPort)) << 0
	m |= uint32(boolBit(s.MsgConf)) << 1
	m |= uint32(boolBit(s.InfMsg)) << 2
	m |= uint32(boolBit(s.NavConf)) << 3
	m |= uint32(boolBit(s.RxmConf)) << 4
	m |= uint32(boolBit(s.SenConf)) << 8
	m |= uint32(boolBit(s.RinvConf)) << 9
	m |= uint32(boolBit(s.AntConf)) << 10
	m |= uint32(boolBit(s.LogConf)) << 11
	m |= uint32(boolBit(s.FtsConf)) << 12
	return m
}

// StorageConfig selects which sections to clear, save or load, and which
// storage devices the operation touches.
type StorageConfig struct {
	Clear CfgSections
	Save  CfgSections
	Load  CfgSections

	DevBBR      bool // battery-backed RAM
	DevFlash    bool
	DevEEPROM   bool
	DevSPIFlash bool
}

// CfgCfg saves, loads or clears configuration sets (CFG-CFG).
func (r *Receiver) CfgCfg(cfg StorageConfig) Result {
	buf := make([]byte, 13)
	ind := 0

	ubx.PutX4(buf, &ind, cfg.Clear.mask())
	ubx.PutX4(buf, &ind, cfg.Save.mask())
	ubx.PutX4(buf, &ind, cfg.Load.mask())

	var device uint8
	device |= boolByte(cfg.DevBBR) << 0
	device |= boolByte(cfg.DevFlash) << 1
	device |= boolByte(cfg.DevEEPROM) << 2
	device |= boolByte(cfg.DevSPIFlash) << 4
	ubx.PutX1(buf, &ind, device)

	return r.sendWait(ubx.ClassCfg, ubx.CfgCfgID, buf[:ind], r.ackWait)
}

// NMEAConfig carries the CFG-NMEA protocol settings: sentence filters,
// protocol version, per-constellation output filters and talker ids.
type NMEAConfig struct {
	PosFilt     bool
	MskPosFilt  bool
	TimeFilt    bool
	DateFilt    bool
	GpsOnlyFilt bool
	TrackFilt   bool

	Version uint8 // e.g. 0x41 for NMEA 4.1
	NumSV   uint8

	Compat   bool
	Consider bool
	Limit82  bool
	HighPrec bool

	DisableGps     bool
	DisableSbas    bool
	DisableQzss    bool
	DisableGlonass bool
	DisableBeidou  bool

	SvNumbering  uint8
	MainTalkerID uint8
	GsvTalkerID  uint8
	BdsTalkerID  [2]int8
}

// CfgNMEA sets the NMEA protocol configuration (CFG-NMEA).
func (r *Receiver) CfgNMEA(cfg NMEAConfig) Result {
	buf := make([]byte, 20)
	ind := 0

	var filter uint8
	filter |= boolByte(cfg.PosFilt) << 0
	filter |= boolByte(cfg.MskPosFilt) << 1
	filter |= boolByte(cfg.TimeFilt) << 2
	filter |= boolByte(cfg.DateFilt) << 3
	filter |= boolByte(cfg.GpsOnlyFilt) << 4
	filter |= boolByte(cfg.TrackFilt) << 5
	ubx.PutX1(buf, &ind, filter)

	ubx.PutU1(buf, &ind, cfg.Version)
	ubx.PutU1(buf, &ind, cfg.NumSV)

	var flags uint8
	flags |= boolByte(cfg.Compat) << 0
	flags |= boolByte(cfg.Consider) << 1
	flags |= boolByte(cfg.Limit82) << 2
	flags |= boolByte(cfg.HighPrec) << 3
	ubx.PutX1(buf, &ind, flags)

	var gnssFilter uint32
	gnssFilter |= uint32(boolBit(cfg.DisableGps)) << 0
	gnssFilter |= uint32(boolBit(cfg.DisableSbas)) << 1
	gnssFilter |= uint32(boolBit(cfg.DisableQzss)) << 4
	gnssFilter |= uint32(boolBit(cfg.DisableGlonass)) << 5
	gnssFilter |= uint32(boolBit(cfg.DisableBeidou)) << 6
	ubx.PutX4(buf, &ind, gnssFilter)

	ubx.PutU1(buf, &ind, cfg.SvNumbering)
	ubx.PutU1(buf, &ind, cfg.MainTalkerID)
	ubx.PutU1(buf, &ind, cfg.GsvTalkerID)
	ubx.PutU1(buf, &ind, 1) // message version 1
	ubx.PutI1(buf, &ind, cfg.BdsTalkerID[0])
	ubx.PutI1(buf, &ind, cfg.BdsTalkerID[1])
	for i := 0; i < 6; i++ {
		ubx.PutU1(buf, &ind, 0)
	}

	return r.sendWait(ubx.ClassCfg, ubx.CfgNmeaID, buf[:ind], r.ackWait)
}

// CfgGnss sets the constellation configuration (CFG-GNSS). A configuration
// with more blocks than the message allows is rejected locally as Nak.
func (r *Receiver) CfgGnss(cfg ubx.CfgGnss) Result {
	if len(cfg.Blocks) > ubx.MaxGnssBlocks {
		r.diag("cfg-gnss: %d blocks exceeds the message limit of %d",
			len(cfg.Blocks), ubx.MaxGnssBlocks)
		return Nak
	}
	return r.sendWait(ubx.ClassCfg, ubx.CfgGnssID, ubx.EncodeCfgGnss(cfg), r.ackWait)
}

// CfgValset applies a batch of key/value configuration items (CFG-VALSET)
// to the selected layers. values must be a concatenation of key/value pairs
// built with the Append* helpers below. Only M10-generation receivers accept
// this message.
func (r *Receiver) CfgValset(values []byte, ram, bbr, flash bool) Result {
	buf := make([]byte, 4+len(values))
	ind := 0

	ubx.PutU1(buf, &ind, 0) // message version

	var layers uint8
	layers |= boolByte(ram) << 0
	layers |= boolByte(bbr) << 1
	layers |= boolByte(flash) << 2
	ubx.PutX1(buf, &ind, layers)

	ubx.PutU1(buf, &ind, 0)
	ubx.PutU1(buf, &ind, 0)

	copy(buf[ind:], values)
	ind += len(values)

	return r.sendWait(ubx.ClassCfg, ubx.CfgValsetID, buf[:ind], r.ackWait)
}

// Append helpers for building CFG-VALSET payloads. They share the cursor
// convention of the ubx field codec: each call writes at *ind and advances
// it.

// AppendKeyU1 appends one single-byte configuration item.
func AppendKeyU1(buf []byte, ind *int, key uint32, val uint8) {
	ubx.PutX4(buf, ind, key)
	ubx.PutU1(buf, ind, val)
}

// AppendUart1Baud appends the UART1 baud rate item.
func AppendUart1Baud(buf []byte, ind *int, baud uint32) {
	ubx.PutX4(buf, ind, ubx.KeyCfgUart1Baudrate)
	ubx.PutU4(buf, ind, baud)
}

// AppendRate appends the measurement rate and navigation ratio items.
func AppendRate(buf []byte, ind *int, measMs uint16, nav uint16) {
	ubx.PutX4(buf, ind, ubx.KeyCfgRateMeas)
	ubx.PutU2(buf, ind, measMs)
	ubx.PutX4(buf, ind, ubx.KeyCfgRateNav)
	ubx.PutU2(buf, ind, nav)
}

// AppendEnableGPS appends the GPS constellation and signal enables.
func AppendEnableGPS(buf []byte, ind *int, en, enL1C, enL2C bool) {
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGpsEna, boolByte(en))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGpsL1CEna, boolByte(enL1C))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGpsL2CEna, boolByte(enL2C))
}

// AppendEnableGal appends the Galileo constellation and signal enables.
func AppendEnableGal(buf []byte, ind *int, en, enE1, enE5b bool) {
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGalEna, boolByte(en))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGalE1Ena, boolByte(enE1))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGalE5BEna, boolByte(enE5b))
}

// AppendEnableBds appends the BeiDou constellation and signal enables.
func AppendEnableBds(buf []byte, ind *int, en, enB1, enB2 bool) {
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalBdsEna, boolByte(en))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalBdsB1Ena, boolByte(enB1))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalBdsB2Ena, boolByte(enB2))
}

// AppendEnableGlo appends the GLONASS constellation and signal enables.
func AppendEnableGlo(buf []byte, ind *int, en, enL1, enL2 bool) {
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGloEna, boolByte(en))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGloL1Ena, boolByte(enL1))
	AppendKeyU1(buf, ind, ubx.KeyCfgSignalGloL2Ena, boolByte(enL2))
}

func boolBit(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
