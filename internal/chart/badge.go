// Package chart renders dose badges and ICR progress charts as images
package chart

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Badge colors
const (
	colorIncrease = "#f97316" // Orange
	colorDecrease = "#38bdf8" // Sky
	colorKeep     = "#4ade80" // Green
	colorEmpty    = "#808080" // Gray
)

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

// loadFont sets a Go Regular face of the given size on dc
func loadFont(dc *gg.Context, size float64) error {
	face, err := fontFace(size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	return nil
}

func fontFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: size}), nil
}

// DoseBadge renders a 64x64 badge showing a dose in units. direction is the
// recommended change (-1, 0, +1) and adds an arrow when non-zero.
func DoseBadge(units float64, direction int) image.Image {
	text := fmt.Sprintf("%.1f", units)
	if units >= 100 || units <= -100 {
		text = fmt.Sprintf("%.0f", units)
	}

	bg := colorKeep
	switch {
	case direction > 0:
		bg = colorIncrease
	case direction < 0:
		bg = colorDecrease
	case units == 0:
		bg = colorEmpty
	}
	return Badge(text, bg, direction)
}

// Badge renders text on a rounded square of color bgHex
func Badge(text, bgHex string, direction int) image.Image {
	const (
		width  = 64
		height = 64
		radius = 16
	)

	dc := gg.NewContext(width, height)

	// Transparent background
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	r, g, b := parseHexColor(bgHex)
	dc.SetRGB255(int(r), int(g), int(b))
	dc.DrawRoundedRectangle(0, 0, float64(width), float64(height), float64(radius))
	dc.Fill()

	// Text color (black or white depending on brightness)
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	textY := float64(height) / 2
	if direction != 0 {
		textY = float64(height)/2 - 12
	}
	size := 28.0
	if len(text) > 4 {
		size = 20
	}
	if err := loadFont(dc, size); err == nil {
		dc.DrawStringAnchored(text, width/2, textY, 0.5, 0.5)
	}

	if direction != 0 {
		drawArrow(dc, width/2, height-16, 24, direction)
	}

	return dc.Image()
}

// drawArrow draws an up arrow for an increase and a down arrow for a decrease
func drawArrow(dc *gg.Context, x, y, size float64, direction int) {
	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	if direction < 0 {
		dc.Rotate(gg.Radians(180))
	}

	// Standard arrow shape centered at the origin
	s := size
	w := s * 0.5

	dc.NewSubPath() // Tip
	dc.MoveTo(0, -s/2)
	dc.LineTo(w/2, 0)
	dc.LineTo(w/6, 0)
	dc.LineTo(w/6, s/2)
	dc.LineTo(-w/6, s/2)
	dc.LineTo(-w/6, 0)
	dc.LineTo(-w/2, 0)
	dc.ClosePath()
	dc.Fill()
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeICO wraps the PNG encoding of img in a single-image ICO container
//
// ICO format structure:
// - ICONDIR header (6 bytes)
// - ICONDIRENTRY for each image (16 bytes)
// - PNG data for each image
func EncodeICO(img image.Image) ([]byte, error) {
	pngData, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	// Reserved, type (1 = ICO), number of images
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))

	bounds := img.Bounds()
	// Width and height (0 = 256)
	buf.WriteByte(icoDimension(bounds.Dx()))
	buf.WriteByte(icoDimension(bounds.Dy()))
	// No palette, reserved
	buf.WriteByte(0)
	buf.WriteByte(0)
	// Color planes, bits per pixel
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	// #nosec G115 -- PNG size is limited by memory and will not overflow uint32
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	// Offset to image data (header + directory entry = 6 + 16 = 22)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22))

	buf.Write(pngData)

	return buf.Bytes(), nil
}

func icoDimension(n int) byte {
	if n >= 256 {
		return 0
	}
	return byte(n)
}
