package fits

import (
	"fmt"
	"math"
	"time"
)

// bucketSeconds is the width of an observation time bucket. A UTC day
// splits into 96 buckets of 15 minutes each.
const bucketSeconds = 900

// dateObsLayouts are the accepted DATE-OBS formats, tried in order.
var dateObsLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateObs parses a DATE-OBS value as UTC. Fractional seconds and a
// missing time component are tolerated.
func ParseDateObs(value string) (time.Time, error) {
	for _, layout := range dateObsLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fits: unrecognized DATE-OBS %q", value)
}

// ComputeChunkKey derives the grouping key for a frame from its
// observation time and optional pointing coordinates.
//
// The key is "YYYYMMDD.CC" where CC is the zero-padded 15-minute bucket
// within the UTC day. When both ra and dec are present the key gains a
// "_RRR.R_sDD.D" suffix with each coordinate rounded to one decimal,
// half away from zero, and the declination carrying an explicit sign.
// ok is false when dateObs cannot be parsed; frames without a key are
// grouped separately.
func ComputeChunkKey(dateObs string, ra, dec *float64) (key string, ok bool) {
	t, err := ParseDateObs(dateObs)
	if err != nil {
		return "", false
	}

	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	bucket := secs / bucketSeconds

	key = fmt.Sprintf("%s.%02d", t.Format("20060102"), bucket)

	if ra != nil && dec != nil {
		key += fmt.Sprintf("_%.1f_%s%.1f", roundHalfAway(*ra), signOf(*dec), math.Abs(roundHalfAway(*dec)))
	}
	return key, true
}

// roundHalfAway rounds to one decimal place, halves away from zero.
// fmt's %.1f alone rounds halves to even, which would split frames on
// the .x5 boundary differently from the rest of the pipeline.
func roundHalfAway(v float64) float64 {
	return math.Round(v*10) / 10
}

// signOf reports the sign of the raw value; a declination that rounds
// to zero keeps the sign of its unrounded side, so "-0.0" and "+0.0"
// are distinct groups either side of the celestial equator.
func signOf(v float64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}
