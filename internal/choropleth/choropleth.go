// Package choropleth maps aggregated totals onto the colors of the Brazil map.
package choropleth

import (
	"fmt"
	"strconv"
	"strings"
)

// Palette holds one color per quantile bucket, lightest first.
var Palette = [5]string{"#d0f0c0", "#a8e6a3", "#7dd87a", "#4caf50", "#2e7d32"}

// NoDataColor fills states the map knows but the dataset does not.
const NoDataColor = "#eee"

// DimmedOpacity is applied to every state except the selected one.
const DimmedOpacity = 0.3

// Color returns the palette color for a bucket, clamped to the palette range.
func Color(bucket int) string {
	if bucket < 0 {
		bucket = 0
	}
	if bucket >= len(Palette) {
		bucket = len(Palette) - 1
	}
	return Palette[bucket]
}

// Fill picks the fill of one state on the map.
// When selectedID is non-zero every other state is dimmed.
func Fill(bucket int, hasData bool, stateID, selectedID int64) string {
	if !hasData {
		return NoDataColor
	}
	color := Color(bucket)
	if selectedID == 0 || selectedID == stateID {
		return color
	}
	return Transparentize(color, DimmedOpacity)
}

// Transparentize converts a #rrggbb color into rgba() with the given opacity.
// Colors that are not #rrggbb are returned unchanged.
func Transparentize(hex string, opacity float64) string {
	if len(hex) != 7 || !strings.HasPrefix(hex, "#") {
		return hex
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return hex
	}
	r := (v >> 16) & 0xff
	g := (v >> 8) & 0xff
	b := v & 0xff
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b, strconv.FormatFloat(opacity, 'f', -1, 64))
}
