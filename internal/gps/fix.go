package gps

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// It is accumulated across sentence types: RMC carries time, position and
// velocity, GGA folds in altitude and fix quality.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "2025-12-06"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void), etc.
	AltitudeM  float64 `json:"altitude_m"`  // above mean sea level
	FixQuality string  `json:"fix_quality"` // GGA quality indicator
	Satellites int64   `json:"satellites"`  // satellites used in solution
	HDOP       float64 `json:"hdop"`
}

// ApplyLine folds one raw NMEA line into the fix. It returns true when the
// sentence completed a position update worth publishing (an RMC arrived).
// Lines that are not NMEA, fail their checksum, or carry sentence types the
// fix does not track are skipped; a GNSS receiver mixes many sentence types
// into one stream and most are not ours to consume.
func ApplyLine(f *Fix, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return false, err
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		f.Time = m.Time.String()
		f.Date = m.Date.String()
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.SpeedKnots = m.Speed
		f.CourseDeg = m.Course
		f.Validity = string(m.Validity)
		return true, nil

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		f.AltitudeM = m.Altitude
		f.FixQuality = m.FixQuality
		f.Satellites = m.NumSatellites
		f.HDOP = m.HDOP
		return false, nil

	default:
		return false, nil
	}
}
