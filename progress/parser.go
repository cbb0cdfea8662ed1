package progress

import (
	"regexp"
	"strconv"
)

// Sample is what a single stderr line yielded. Absent fields leave the
// monitor's sticky state untouched.
type Sample struct {
	Bytes      int64
	HasBytes   bool
	Percent    float64
	HasPercent bool
	Rate       float64 // bytes per second
	HasRate    bool
}

// Parser extracts a Sample from one line of backend output. Each backend
// gets its own parser so format drift in one tool does not ripple through
// the monitor loop.
type Parser interface {
	Parse(line string) Sample
}

var (
	bytesRe   = regexp.MustCompile(`(\d+)\s+bytes`)
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	mibRateRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*MiB/s`)
)

// DDParser understands dd status=progress lines, e.g.
// "104857600 bytes (105 MB, 100 MiB) copied, 2 s, 52.4 MB/s" and the
// summary "...copied" lines. A "<n> MiB/s" rate is used directly when
// present.
type DDParser struct{}

func (DDParser) Parse(line string) Sample {
	var s Sample
	if m := bytesRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			s.Bytes = v
			s.HasBytes = true
		}
	}
	if m := percentRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.Percent = v
			s.HasPercent = true
		}
	}
	if m := mibRateRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.Rate = v * 1024 * 1024
			s.HasRate = true
		}
	}
	return s
}

var (
	completedRe     = regexp.MustCompile(`Completed:\s*(\d+(?:\.\d+)?)%`)
	partcloneRateRe = regexp.MustCompile(`Rate:\s*(\d+(?:\.\d+)?)([KMGT]?B)/(s|sec|min)`)
)

var rateUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// PartcloneParser understands partclone's
// "Elapsed: ... Remaining: ... Rate: 1.23GB/min ... Completed: 12.34%"
// status lines, falling back to the generic byte/percent patterns.
type PartcloneParser struct{}

func (PartcloneParser) Parse(line string) Sample {
	s := DDParser{}.Parse(line)
	if m := completedRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.Percent = v
			s.HasPercent = true
		}
	}
	if m := partcloneRateRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rate := v * rateUnits[m[2]]
			if m[3] == "min" {
				rate /= 60
			}
			s.Rate = rate
			s.HasRate = true
		}
	}
	return s
}
