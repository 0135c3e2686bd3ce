// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package receiver

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// PollCommand polls one message by name and arms a one-shot diagnostic dump
// of the reply. Message names follow the UBX convention, e.g. "UBX_NAV_SOL".
func (r *Receiver) PollCommand(name string) error {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "UBX_NAV_SOL":
		r.printNavSol.Store(true)
		return r.Poll(ubx.ClassNav, ubx.NavSolID)
	case "UBX_NAV_RELPOSNED":
		r.printRelPosNed.Store(true)
		return r.Poll(ubx.ClassNav, ubx.NavRelPosNedID)
	case "UBX_NAV_SVIN":
		r.printSvin.Store(true)
		return r.Poll(ubx.ClassNav, ubx.NavSvinID)
	case "UBX_RXM_RAWX":
		r.printRawx.Store(true)
		return r.Poll(ubx.ClassRxm, ubx.RxmRawxID)
	case "UBX_NAV_SAT":
		r.printNavSat.Store(true)
		return r.Poll(ubx.ClassNav, ubx.NavSatID)
	case "UBX_MON_VER":
		r.printMonVer.Store(true)
		return r.Poll(ubx.ClassMon, ubx.MonVerID)
	case "UBX_CFG_GNSS":
		r.printCfgGnss.Store(true)
		return r.Poll(ubx.ClassCfg, ubx.CfgGnssID)
	default:
		return fmt.Errorf("unknown poll message %q", name)
	}
}

// PollMessages lists the message names PollCommand accepts.
func PollMessages() []string {
	return []string{
		"UBX_NAV_SOL",
		"UBX_NAV_RELPOSNED",
		"UBX_NAV_SVIN",
		"UBX_RXM_RAWX",
		"UBX_NAV_SAT",
		"UBX_MON_VER",
		"UBX_CFG_GNSS",
	}
}

func (r *Receiver) printNavSolDiag(sol ubx.NavSol) {
	r.diag(
		"NAV_SOL RX\n"+
			"num_sv: %d\n"+
			"i_tow: %d ms\n"+
			"week: %d\n"+
			"fix: %d\n"+
			"X: %.3f m\n"+
			"Y: %.3f m\n"+
			"Z: %.3f m\n"+
			"p_acc: %.3f m\n"+
			"VX: %.3f m/s\n"+
			"VY: %.3f m/s\n"+
			"VZ: %.3f m/s\n"+
			"s_acc: %.3f m/s\n"+
			"Fix OK: %v\n"+
			"Diff Soln: %v\n"+
			"Week valid: %v\n"+
			"TOW valid: %v",
		sol.NumSV, sol.ITow, sol.Week, sol.GpsFix,
		sol.EcefX, sol.EcefY, sol.EcefZ, sol.PAcc,
		sol.EcefVX, sol.EcefVY, sol.EcefVZ, sol.SAcc,
		sol.FixOK, sol.DiffSoln, sol.WeekValid, sol.TowValid)
}

func (r *Receiver) printRelPosNedDiag(pos ubx.RelPosNed) {
	r.diag(
		"NED RX\n"+
			"i_tow: %d ms\n"+
			"N: %.3f m\n"+
			"E: %.3f m\n"+
			"D: %.3f m\n"+
			"Length: %.3f m\n"+
			"Heading: %.3f\n"+
			"N_Acc: %.3f m\n"+
			"E_Acc: %.3f m\n"+
			"D_Acc: %.3f m\n"+
			"Length_Acc: %.3f m\n"+
			"Heading_Acc: %.3f\n"+
			"Fix OK: %v\n"+
			"Diff Soln: %v\n"+
			"Rel Pos Valid: %v\n"+
			"Carr Soln: %d\n"+
			"Is Moving: %v\n"+
			"Ref Pos Miss: %v\n"+
			"Ref Obs Miss: %v\n"+
			"Heading Valid: %v\n"+
			"Normalized: %v",
		pos.ITow,
		pos.PosN, pos.PosE, pos.PosD, pos.PosLength, pos.PosHeading,
		pos.AccN, pos.AccE, pos.AccD, pos.AccLength, pos.AccHeading,
		pos.FixOK, pos.DiffSoln, pos.RelPosValid, pos.CarrSoln, pos.IsMoving,
		pos.RefPosMiss, pos.RefObsMiss, pos.RelPosHeadValid, pos.RelPosNorm)
}

func (r *Receiver) printSvinDiag(svin ubx.Svin) {
	r.diag(
		"SVIN RX\n"+
			"i_tow: %d ms\n"+
			"dur: %d s\n"+
			"Mean X: %.3f m\n"+
			"Mean Y: %.3f m\n"+
			"Mean Z: %.3f m\n"+
			"Mean ACC: %.3f m\n"+
			"Valid: %v\n"+
			"Active: %v",
		svin.ITow, svin.Dur,
		svin.MeanX, svin.MeanY, svin.MeanZ, svin.MeanAcc,
		svin.Valid, svin.Active)
}

func (r *Receiver) printRawxDiag(raw ubx.Rawx) {
	r.diag(
		"RAWX RX\n"+
			"tow: %.3f\n"+
			"week: %d\n"+
			"leap_sec: %v\n"+
			"num_meas: %d\n"+
			"pr_0: %.3f\n"+
			"pr_1: %.3f",
		raw.RcvTow, raw.Week, raw.LeapSec, raw.NumMeas,
		raw.Obs[0].PrMes, raw.Obs[1].PrMes)
}

// printNavSatDiag summarizes per-constellation visibility. A satellite
// counts as used only when the receiver both used it in the solution and
// reports at least code-locked signal quality.
func (r *Receiver) printNavSatDiag(sat ubx.NavSat) {
	var visible, used [4]int // GPS, GLONASS, Galileo, BeiDou

	for i := 0; i < int(sat.NumSV); i++ {
		s := sat.Sats[i]

		var slot int
		switch s.GnssID {
		case ubx.GnssIDGPS:
			slot = 0
		case ubx.GnssIDGLONASS:
			slot = 1
		case ubx.GnssIDGalileo:
			slot = 2
		case ubx.GnssIDBeiDou:
			slot = 3
		default:
			continue
		}

		visible[slot]++
		if s.Used && s.Quality >= 4 {
			used[slot]++
		}
	}

	totalVisible := visible[0] + visible[1] + visible[2] + visible[3]
	totalUsed := used[0] + used[1] + used[2] + used[3]

	r.diag(
		"         Visible   Used\n"+
			"GPS:     %02d        %02d\n"+
			"GLONASS: %02d        %02d\n"+
			"Galileo: %02d        %02d\n"+
			"BeiDou:  %02d        %02d\n"+
			"Total:   %02d        %02d",
		visible[0], used[0],
		visible[1], used[1],
		visible[2], used[2],
		visible[3], used[3],
		totalVisible, totalUsed)
}

func (r *Receiver) printCfgGnssDiag(cfg ubx.CfgGnss) {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"CFG_GNSS RX\n"+
			"TrkChHw   : %d\n"+
			"TrkChUse  : %d\n"+
			"Blocks    : %d",
		cfg.NumChHw, cfg.NumChUse, len(cfg.Blocks))

	for _, b := range cfg.Blocks {
		fmt.Fprintf(&sb,
			"\nGNSS ID: %d, Enabled: %v\n"+
				"MinTrkCh  : %d\n"+
				"MaxTrkCh  : %d\n"+
				"Flags     : %d",
			b.GnssID, b.Enabled, b.MinTrkCh, b.MaxTrkCh, b.Flags)
	}

	r.diag("%s", sb.String())
}

func (r *Receiver) printMonVerDiag(ver ubx.MonVer) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "MON_VER RX:\nSW: %s\nHW: %s\nExtensions:", ver.SW, ver.HW)
	for _, ext := range ver.Extensions {
		sb.WriteByte('\n')
		sb.WriteString(ext)
	}
	r.diag("%s", sb.String())
}
