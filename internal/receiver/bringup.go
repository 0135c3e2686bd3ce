// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package receiver

import (
	"fmt"
	"time"

	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// Factory default baud rates. Legacy (M8 and older) modules come up at 9600,
// M10 modules at 38400.
const (
	baudDefaultLegacy = 9600
	baudDefaultM10    = 38400
)

// Bringup negotiates the serial link and applies the steady-state
// configuration. It first assumes the receiver already runs at the target
// baud and probes it with CFG-RATE; on silence it falls back to the factory
// default rate, pushes the target baud through CFG-PRT and probes again.
// Receivers that never answer the legacy commands get the same ladder with
// CFG-VALSET, which also identifies them as M10 generation.
//
// The receive loop must be running. Bringup returns an error when the
// receiver stays silent through all rounds of both ladders.
func (r *Receiver) Bringup(baud uint, rateMs uint16, dynModel byte) error {
	prt := PortConfig{
		Baudrate: uint32(baud),
		InUBX:    true,
		InNMEA:   true,
		OutUBX:   true,
		OutNMEA:  true,
	}

	baudOK := false
	isM10 := false

	for i := 0; i < 4; i++ {
		// A receiver already at the target rate answers the first probe,
		// with Nak if it no longer supports CFG-RATE.
		if r.CfgRate(rateMs, 1, 0) != Timeout {
			baudOK = true
			break
		}

		// Assume a factory-fresh module at the default rate and push the
		// target baud. The answer arrives at the new rate, so it is lost;
		// send twice and verify with fresh probes instead.
		if err := r.reconfigure(baudDefaultLegacy); err != nil {
			return err
		}
		r.CfgPrtUART(prt)

		time.Sleep(r.settleDelay)
		r.requestDecoderReset()
		r.CfgPrtUART(prt)

		if err := r.reconfigure(baud); err != nil {
			return err
		}
		if r.CfgRate(rateMs, 1, 0) != Timeout {
			baudOK = true
			break
		}

		time.Sleep(r.settleDelay)
		r.requestDecoderReset()
		if r.CfgRate(rateMs, 1, 0) != Timeout {
			baudOK = true
			break
		}

		time.Sleep(r.retryDelay)
	}

	if !baudOK {
		buf := make([]byte, 80)
		ind := 0
		AppendUart1Baud(buf, &ind, uint32(baud))
		AppendRate(buf, &ind, rateMs, 1)
		vals := buf[:ind]

		for i := 0; i < 4; i++ {
			if r.CfgValset(vals, true, true, true) != Timeout {
				baudOK = true
				break
			}

			if err := r.reconfigure(baudDefaultM10); err != nil {
				return err
			}
			r.CfgValset(vals, true, true, true)

			time.Sleep(r.settleDelay)
			r.requestDecoderReset()
			r.CfgValset(vals, true, true, true)

			if err := r.reconfigure(baud); err != nil {
				return err
			}
			if r.CfgValset(vals, true, true, true) != Timeout {
				baudOK = true
				break
			}

			time.Sleep(r.settleDelay)
			r.requestDecoderReset()
			if r.CfgValset(vals, true, true, true) != Timeout {
				baudOK = true
				break
			}

			time.Sleep(r.retryDelay)
		}

		if baudOK {
			isM10 = true
		}
	}

	if !baudOK {
		return fmt.Errorf("receiver unreachable at %d baud", baud)
	}

	if isM10 {
		r.generation.Store(int32(GenM10))
		r.configureM10()
	} else {
		r.generation.Store(int32(GenLegacy))
		r.configureLegacy(prt, rateMs, dynModel)
	}

	return nil
}

// reconfigure changes the transport baud rate and discards partial decoder
// state left over from the old rate.
func (r *Receiver) reconfigure(baud uint) error {
	if err := r.tr.Configure(baud); err != nil {
		return fmt.Errorf("set %d baud: %w", baud, err)
	}
	time.Sleep(r.settleDelay)
	r.requestDecoderReset()
	return nil
}

// configureLegacy applies the steady-state configuration through the legacy
// CFG-* messages: periodic GGA, GSV and RMC sentences, binary messages on
// poll only, automotive dynamic model, NMEA 4.1 and the GPS+SBAS+GLONASS
// constellation set. Individual rejections are tolerated since older
// firmware does not know every message.
func (r *Receiver) configureLegacy(prt PortConfig, rateMs uint16, dynModel byte) {
	r.CfgPrtUART(prt)
	r.CfgRate(rateMs, 1, 0)

	r.CfgNav5(Nav5Config{
		ApplyDyn: true,
		DynModel: dynModel,
	})

	r.CfgMsg(ubx.ClassNav, ubx.NavSolID, 0)
	r.CfgMsg(ubx.ClassNav, ubx.NavRelPosNedID, 0)
	r.CfgMsg(ubx.ClassNav, ubx.NavSvinID, 0)
	r.CfgMsg(ubx.ClassNav, ubx.NavSatID, 0)

	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGGA, 1)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGSV, 1)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaRMC, 1)

	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGLL, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGSA, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaVTG, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGRS, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGST, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaZDA, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaGBS, 0)
	r.CfgMsg(ubx.ClassNmea, ubx.NmeaDTM, 0)

	r.CfgNMEA(NMEAConfig{Version: 0x41})

	r.CfgGnss(ubx.CfgGnss{
		NumChHw:  32,
		NumChUse: 0xFF,
		Blocks: []ubx.GnssBlock{
			{GnssID: ubx.GnssIDGPS, Enabled: true, MinTrkCh: 6, MaxTrkCh: 16,
				Flags: ubx.CfgGnssGpsL1C},
			{GnssID: ubx.GnssIDSBAS, Enabled: true, MinTrkCh: 0, MaxTrkCh: 3,
				Flags: ubx.CfgGnssSbasL1C},
			{GnssID: ubx.GnssIDGLONASS, Enabled: true, MinTrkCh: 6, MaxTrkCh: 16,
				Flags: ubx.CfgGnssGloL1},
			{GnssID: ubx.GnssIDBeiDou, Enabled: false, MinTrkCh: 6, MaxTrkCh: 16,
				Flags: ubx.CfgGnssBdsB1L},
		},
	})
}

// configureM10 applies the steady-state message selection through one
// CFG-VALSET batch: periodic GGA, GSV, RMC and UBX-NAV-SAT on UART1,
// everything else off.
func (r *Receiver) configureM10() {
	buf := make([]byte, 90)
	ind := 0

	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGgaUart1, 1)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGsvUart1, 1)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaRmcUart1, 1)

	AppendKeyU1(buf, &ind, ubx.KeyMsgoutUbxNavSatUart1, 1)

	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaDtmUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGbsUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGllUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGnsUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGrsUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGsaUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaGstUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaRlmUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaVlwUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaVtgUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutNmeaZdaUart1, 0)
	AppendKeyU1(buf, &ind, ubx.KeyMsgoutPubxPolypUart1, 0)

	r.CfgValset(buf[:ind], true, true, true)
}
