package ubx

// Sync bytes opening every UBX frame.
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Message classes.
const (
	ClassNav  = 0x01
	ClassRxm  = 0x02
	ClassInf  = 0x04
	ClassAck  = 0x05
	ClassCfg  = 0x06
	ClassUpd  = 0x09
	ClassMon  = 0x0A
	ClassAid  = 0x0B
	ClassTim  = 0x0D
	ClassMga  = 0x13
	ClassLog  = 0x21
	ClassSec  = 0x27
	ClassHnr  = 0x28
	ClassNmea = 0xF0
	ClassRtcm = 0xF5
)

// NAV class message ids.
const (
	NavSolID       = 0x06
	NavPvtID       = 0x07
	NavSatID       = 0x35
	NavSvinID      = 0x3B
	NavRelPosNedID = 0x3C
)

// ACK class message ids.
const (
	AckNakID = 0x00
	AckAckID = 0x01
)

// RXM class message ids.
const (
	RxmRawxID = 0x15
)

// CFG class message ids.
const (
	CfgPrtID    = 0x00
	CfgMsgID    = 0x01
	CfgRateID   = 0x08
	CfgCfgID    = 0x09
	CfgNmeaID   = 0x17
	CfgNav5ID   = 0x24
	CfgTp5ID    = 0x31
	CfgGnssID   = 0x3E
	CfgTmode3ID = 0x71
	CfgValsetID = 0x8A
)

// MON class message ids.
const (
	MonVerID = 0x04
)

// Standard NMEA message ids under ClassNmea, used with CFG-MSG to control
// which sentences the receiver emits.
const (
	NmeaGGA = 0x00
	NmeaGLL = 0x01
	NmeaGSA = 0x02
	NmeaGSV = 0x03
	NmeaRMC = 0x04
	NmeaVTG = 0x05
	NmeaGRS = 0x06
	NmeaGST = 0x07
	NmeaZDA = 0x08
	NmeaGBS = 0x09
	NmeaDTM = 0x0A
)

// GNSS ids as used in CFG-GNSS blocks and NAV-SAT entries.
const (
	GnssIDGPS     = 0
	GnssIDSBAS    = 1
	GnssIDGalileo = 2
	GnssIDBeiDou  = 3
	GnssIDIMES    = 4
	GnssIDQZSS    = 5
	GnssIDGLONASS = 6
)

// Per-constellation signal configuration flags for CFG-GNSS blocks
// (the sigCfgMask byte, bits 16..23 of the block flags word).
const (
	CfgGnssGpsL1C  = 0x01
	CfgGnssGpsL2C  = 0x10
	CfgGnssSbasL1C = 0x01
	CfgGnssGalE1   = 0x01
	CfgGnssGalE5B  = 0x20
	CfgGnssBdsB1L  = 0x01
	CfgGnssBdsB2L  = 0x10
	CfgGnssGloL1   = 0x01
	CfgGnssGloL2   = 0x10
)

// Configuration keys for CFG-VALSET on M10-generation receivers.
const (
	KeyCfgUart1Baudrate = 0x40520001

	KeyCfgRateMeas = 0x30210001
	KeyCfgRateNav  = 0x30210002

	KeyCfgSignalGpsEna    = 0x1031001F
	KeyCfgSignalGpsL1CEna = 0x10310001
	KeyCfgSignalGpsL2CEna = 0x10310003
	KeyCfgSignalGalEna    = 0x10310021
	KeyCfgSignalGalE1Ena  = 0x10310007
	KeyCfgSignalGalE5BEna = 0x1031000A
	KeyCfgSignalBdsEna    = 0x10310022
	KeyCfgSignalBdsB1Ena  = 0x1031000D
	KeyCfgSignalBdsB2Ena  = 0x1031000E
	KeyCfgSignalGloEna    = 0x10310025
	KeyCfgSignalGloL1Ena  = 0x10310018
	KeyCfgSignalGloL2Ena  = 0x1031001A

	KeyMsgoutNmeaDtmUart1   = 0x209100A7
	KeyMsgoutNmeaRmcUart1   = 0x209100AC
	KeyMsgoutNmeaVtgUart1   = 0x209100B1
	KeyMsgoutNmeaGnsUart1   = 0x209100B6
	KeyMsgoutNmeaGgaUart1   = 0x209100BB
	KeyMsgoutNmeaGsaUart1   = 0x209100C0
	KeyMsgoutNmeaGsvUart1   = 0x209100C5
	KeyMsgoutNmeaGllUart1   = 0x209100CA
	KeyMsgoutNmeaGrsUart1   = 0x209100CF
	KeyMsgoutNmeaGstUart1   = 0x209100D4
	KeyMsgoutNmeaZdaUart1   = 0x209100D9
	KeyMsgoutNmeaGbsUart1   = 0x209100DE
	KeyMsgoutNmeaVlwUart1   = 0x209100E8
	KeyMsgoutPubxPolypUart1 = 0x209100ED
	KeyMsgoutNmeaRlmUart1   = 0x20910401
	KeyMsgoutUbxNavSatUart1 = 0x20910016
)
