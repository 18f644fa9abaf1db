package tosca

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ScalarKind is the family of a scalar-unit value.
type ScalarKind string

const (
	ScalarSize      ScalarKind = "size"
	ScalarTime      ScalarKind = "time"
	ScalarFrequency ScalarKind = "frequency"
)

// scalarUnits maps each kind's canonical unit spelling to its factor in the base
// unit (bytes, seconds, hertz).
var scalarUnits = map[ScalarKind]map[string]float64{
	ScalarSize: {
		"B":   1,
		"kB":  1e3,
		"KiB": 1 << 10,
		"MB":  1e6,
		"MiB": 1 << 20,
		"GB":  1e9,
		"GiB": 1 << 30,
		"TB":  1e12,
		"TiB": 1 << 40,
	},
	ScalarTime: {
		"d":  86400,
		"h":  3600,
		"m":  60,
		"s":  1,
		"ms": 1e-3,
		"us": 1e-6,
		"ns": 1e-9,
	},
	ScalarFrequency: {
		"Hz":  1,
		"kHz": 1e3,
		"MHz": 1e6,
		"GHz": 1e9,
	},
}

var scalarRe = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?)\s*([A-Za-z]+)\s*$`)

// ScalarUnit is a parsed "<number> <unit>" value.
type ScalarUnit struct {
	Value float64
	Unit  string
	Kind  ScalarKind
}

// ParseScalarUnit parses s as a scalar-unit of the given kind. Units match
// case-insensitively and come back in canonical spelling.
func ParseScalarUnit(s string, kind ScalarKind) (ScalarUnit, error) {
	units, ok := scalarUnits[kind]
	if !ok {
		return ScalarUnit{}, fmt.Errorf("unknown scalar-unit kind %q", kind)
	}
	m := scalarRe.FindStringSubmatch(s)
	if m == nil {
		return ScalarUnit{}, fmt.Errorf("%q is not of the form <number> <unit>", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return ScalarUnit{}, fmt.Errorf("%q: %w", s, err)
	}
	unit, ok := canonicalUnit(units, m[2])
	if !ok {
		return ScalarUnit{}, fmt.Errorf("%q: unit %q is not a %s unit (want one of %s)",
			s, m[2], kind, strings.Join(Units(kind), ", "))
	}
	return ScalarUnit{Value: value, Unit: unit, Kind: kind}, nil
}

func canonicalUnit(units map[string]float64, unit string) (string, bool) {
	if _, ok := units[unit]; ok {
		return unit, true
	}
	for u := range units {
		if strings.EqualFold(u, unit) {
			return u, true
		}
	}
	return "", false
}

// Base returns the value in the kind's base unit.
func (s ScalarUnit) Base() float64 {
	return s.Value * scalarUnits[s.Kind][s.Unit]
}

func (s ScalarUnit) String() string {
	return strconv.FormatFloat(s.Value, 'f', -1, 64) + " " + s.Unit
}

// Units lists the canonical units of a kind, smallest first.
func Units(kind ScalarKind) []string {
	units := scalarUnits[kind]
	out := make([]string, 0, len(units))
	for u := range units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if units[out[i]] != units[out[j]] {
			return units[out[i]] < units[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// scalarKindForType maps a TOSCA property type to its scalar kind.
func scalarKindForType(typ string) (ScalarKind, bool) {
	switch typ {
	case "scalar-unit.size", "tosca.datatypes.scalar-unit.size":
		return ScalarSize, true
	case "scalar-unit.time", "tosca.datatypes.scalar-unit.time":
		return ScalarTime, true
	case "scalar-unit.frequency", "tosca.datatypes.scalar-unit.frequency":
		return ScalarFrequency, true
	}
	return "", false
}
