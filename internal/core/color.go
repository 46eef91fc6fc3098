package core

import (
	"fmt"
	"strconv"
	"strings"
)

// LighterShade mixes a "#RRGGBB" color with white. Unparseable input is returned unchanged.
func LighterShade(hex string, amount float64) string {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return hex
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return hex
	}
	if amount < 0 {
		amount = 0
	} else if amount > 1 {
		amount = 1
	}
	mix := func(c uint64) uint64 {
		return c + uint64(float64(255-c)*amount+0.5)
	}
	r := mix(v >> 16 & 0xff)
	g := mix(v >> 8 & 0xff)
	b := mix(v & 0xff)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}
