package chart

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/mrcode/directdose/internal/models"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		hex     string
		r, g, b byte
	}{
		{"#f97316", 0xf9, 0x73, 0x16},
		{"#000000", 0, 0, 0},
		{"#ffffff", 255, 255, 255},
		{"invalid", 0, 0, 0},
		{"#fff", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			r, g, b := parseHexColor(tt.hex)
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("parseHexColor(%s) = %d,%d,%d, want %d,%d,%d", tt.hex, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestDoseBadge_PNG(t *testing.T) {
	for _, direction := range []int{-1, 0, 1} {
		img := DoseBadge(2.5, direction)
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
			t.Fatalf("badge size = %v, want 64x64", img.Bounds())
		}

		data, err := EncodePNG(img)
		if err != nil {
			t.Fatalf("EncodePNG() error = %v", err)
		}
		decoded, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("png.Decode() error = %v", err)
		}
		if decoded.Bounds() != img.Bounds() {
			t.Errorf("decoded bounds = %v, want %v", decoded.Bounds(), img.Bounds())
		}
	}
}

func TestEncodeICO(t *testing.T) {
	data, err := EncodeICO(DoseBadge(4, 1))
	if err != nil {
		t.Fatalf("EncodeICO() error = %v", err)
	}
	if len(data) < 22 {
		t.Fatalf("ICO too short: %d bytes", len(data))
	}

	if typ := binary.LittleEndian.Uint16(data[2:4]); typ != 1 {
		t.Errorf("ICO type = %d, want 1", typ)
	}
	if count := binary.LittleEndian.Uint16(data[4:6]); count != 1 {
		t.Errorf("image count = %d, want 1", count)
	}
	if data[6] != 64 || data[7] != 64 {
		t.Errorf("dimensions = %dx%d, want 64x64", data[6], data[7])
	}
	size := binary.LittleEndian.Uint32(data[14:18])
	if int(size) != len(data)-22 {
		t.Errorf("image size = %d, want %d", size, len(data)-22)
	}
	if _, err := png.Decode(bytes.NewReader(data[22:])); err != nil {
		t.Errorf("embedded PNG does not decode: %v", err)
	}
}

func testICRProfile() *models.ICRProfile {
	final := 11.2
	p := &models.ICRProfile{
		TotalDailyInsulin: 40,
		InitialICR:        12.5,
		ISF:               45,
		TargetBG:          120,
		FinalICR:          &final,
		CreatedAt:         time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	p.Days[0] = &models.DayResult{Day: 1, BasisICR: 12.5, AdjustedICR: 11.8}
	p.Days[1] = &models.DayResult{Day: 2, BasisICR: 11.8, AdjustedICR: 10.6}
	return p
}

func TestICRSeries(t *testing.T) {
	points := ICRSeries(testICRProfile())
	want := []ICRPoint{{"Init", 12.5}, {"D1", 11.8}, {"D2", 10.6}}
	if len(points) != len(want) {
		t.Fatalf("len(points) = %d, want %d", len(points), len(want))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("points[%d] = %v, want %v", i, points[i], want[i])
		}
	}

	if got := ICRSeries(&models.ICRProfile{}); got != nil {
		t.Errorf("ICRSeries(uninitialized) = %v, want nil", got)
	}
}

func TestRenderICRProgress(t *testing.T) {
	img, err := RenderICRProgress(testICRProfile())
	if err != nil {
		t.Fatalf("RenderICRProgress() error = %v", err)
	}
	if img.Bounds().Dx() != ChartWidth || img.Bounds().Dy() != ChartHeight {
		t.Errorf("chart size = %v, want %dx%d", img.Bounds(), ChartWidth, ChartHeight)
	}
	if _, err := EncodePNG(img); err != nil {
		t.Errorf("EncodePNG() error = %v", err)
	}

	if _, err := RenderICRProgress(&models.ICRProfile{}); !errors.Is(err, ErrNoICRData) {
		t.Errorf("RenderICRProgress(empty) error = %v, want ErrNoICRData", err)
	}
}

func TestSparkline(t *testing.T) {
	chart := Sparkline([]float64{12.5, 11.8, 10.6, 10.9, 11.2}, 4)
	if chart == "" {
		t.Fatal("Expected chart to be generated, got empty string")
	}

	lines := strings.Split(chart, "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6 (max, 4 rows, min)", len(lines))
	}
	if lines[0] != "Max: 12.5" || lines[5] != "Min: 10.6" {
		t.Errorf("labels = %q / %q", lines[0], lines[5])
	}

	// Highest value reaches the top row
	if []rune(lines[1])[0] != '⣿' {
		t.Errorf("top row of max column = %q, want full block", []rune(lines[1])[0])
	}
	// Lowest value keeps a baseline mark
	if []rune(lines[4])[2] != '⣀' {
		t.Errorf("bottom row of min column = %q, want baseline", []rune(lines[4])[2])
	}

	if Sparkline([]float64{10}, 4) != "" {
		t.Error("single value should produce an empty chart")
	}
}
