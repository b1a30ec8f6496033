package chart

import (
	"fmt"
	"math"
	"strings"
)

// Braille blocks: empty, 1/4, 1/2, 3/4, full
var sparkBlocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

const subBlocksPerLine = 4.0

// Sparkline renders values as a multi-line braille chart with min and max
// labels. Fewer than two values produce an empty string.
func Sparkline(values []float64, height int) string {
	if len(values) < 2 {
		return ""
	}
	if height < 1 {
		height = 4
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1 // Avoid division by zero
	}

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = []rune(strings.Repeat(string(sparkBlocks[0]), len(values)))
	}

	for x, val := range values {
		total := (val - minVal) / rangeVal * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			switch {
			case total >= lineEnd:
				rows[lineIdx][x] = sparkBlocks[len(sparkBlocks)-1]
			case total > lineStart:
				remainder := int(math.Round(total - lineStart))
				remainder = max(0, min(remainder, len(sparkBlocks)-1))
				rows[lineIdx][x] = sparkBlocks[remainder]
			}
		}
		// The lowest value still gets a baseline mark
		if rows[height-1][x] == sparkBlocks[0] {
			rows[height-1][x] = sparkBlocks[1]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Max: %.1f\n", maxVal)
	for _, row := range rows {
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Min: %.1f", minVal)
	return b.String()
}
