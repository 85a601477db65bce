package heightlog

import "fmt"

// Floor is a named height band on the Deep Dip 2 map.
type Floor struct {
	Name   string
	Height float64 // meters at which the floor starts
}

// Floors lists every floor start height in ascending order.
var Floors = []Floor{
	{"Floor 00", 4},
	{"Floor 01", 138},
	{"Floor 02", 266},
	{"Floor 03", 394},
	{"Floor 04", 522},
	{"Floor 05", 650},
	{"Floor 06", 816},
	{"Floor 07", 906},
	{"Floor 08", 1026},
	{"Floor 09", 1170},
	{"Floor 10", 1296},
	{"Floor 11", 1426},
	{"Floor 12", 1554},
	{"Floor 13", 1680},
	{"Floor 14", 1824},
	{"Floor 15", 1938},
	{"The End", 2100},
}

// FloorAt returns the highest floor whose start is at or below height.
// Heights below the first floor report ok=false.
func FloorAt(height float64) (Floor, bool) {
	var (
		out Floor
		ok  bool
	)
	for _, f := range Floors {
		if height < f.Height {
			break
		}
		out, ok = f, true
	}
	return out, ok
}

// FloorLabel is a short human label for a height, e.g. "1450.3m (Floor 11)".
func FloorLabel(height float64) string {
	if f, ok := FloorAt(height); ok {
		return fmt.Sprintf("%.1fm (%s)", height, f.Name)
	}
	return fmt.Sprintf("%.1fm", height)
}
