package chart

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
)

// Chart size in pixels
const (
	ChartWidth  = 480
	ChartHeight = 240
)

const (
	marginLeft   = 44.0
	marginRight  = 16.0
	marginTop    = 28.0
	marginBottom = 32.0
)

// ErrNoICRData is returned when the profile has no initial estimate
var ErrNoICRData = errors.New("ICR estimation has not started")

// ICRPoint is one plotted ratio
type ICRPoint struct {
	Label string
	Value float64
}

// ICRSeries returns the initial ICR followed by every recorded day
func ICRSeries(p *models.ICRProfile) []ICRPoint {
	if !p.IsInitialized() {
		return nil
	}
	points := []ICRPoint{{Label: "Init", Value: p.InitialICR}}
	for _, d := range p.Days {
		if d == nil {
			continue
		}
		points = append(points, ICRPoint{Label: fmt.Sprintf("D%d", d.Day), Value: d.AdjustedICR})
	}
	return points
}

// RenderICRProgress draws the ICR progression: the typical range as a band,
// one point per step and the final ICR as a horizontal line.
func RenderICRProgress(p *models.ICRProfile) (image.Image, error) {
	points := ICRSeries(p)
	if len(points) == 0 {
		return nil, ErrNoICRData
	}

	lo, hi := dosing.TypicalICRLow, dosing.TypicalICRHigh
	for _, pt := range points {
		lo = math.Min(lo, pt.Value)
		hi = math.Max(hi, pt.Value)
	}
	lo = math.Max(0, math.Floor(lo-2))
	hi = math.Ceil(hi + 2)

	plotW := ChartWidth - marginLeft - marginRight
	plotH := ChartHeight - marginTop - marginBottom
	slots := float64(models.MaxTestDays + 1)
	xAt := func(i int) float64 {
		return marginLeft + plotW*(float64(i)+0.5)/slots
	}
	yAt := func(v float64) float64 {
		return marginTop + plotH*(1-(v-lo)/(hi-lo))
	}

	dc := gg.NewContext(ChartWidth, ChartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Typical range band
	dc.SetRGBA255(74, 222, 128, 60)
	dc.DrawRectangle(marginLeft, yAt(dosing.TypicalICRHigh), plotW, yAt(dosing.TypicalICRLow)-yAt(dosing.TypicalICRHigh))
	dc.Fill()

	// Axes
	dc.SetRGB255(107, 114, 128)
	dc.SetLineWidth(1)
	dc.DrawLine(marginLeft, marginTop, marginLeft, marginTop+plotH)
	dc.DrawLine(marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH)
	dc.Stroke()

	fontOK := loadFont(dc, 11) == nil
	if fontOK {
		for _, v := range []float64{lo, dosing.TypicalICRLow, dosing.TypicalICRHigh, hi} {
			dc.DrawStringAnchored(fmt.Sprintf("%.0f", v), marginLeft-6, yAt(v), 1, 0.5)
		}
		for i, pt := range points {
			dc.DrawStringAnchored(pt.Label, xAt(i), marginTop+plotH+14, 0.5, 0.5)
		}
	}

	// Final ICR
	if p.IsCompleted() {
		y := yAt(*p.FinalICR)
		dc.SetRGB255(239, 68, 68)
		dc.SetLineWidth(1.5)
		dc.SetDash(6, 4)
		dc.DrawLine(marginLeft, y, marginLeft+plotW, y)
		dc.Stroke()
		dc.SetDash()
		if fontOK {
			dc.DrawStringAnchored(fmt.Sprintf("final 1:%.1f", *p.FinalICR), marginLeft+plotW, y-8, 1, 0.5)
		}
	}

	// Progression line and points
	dc.SetRGB255(37, 99, 235)
	dc.SetLineWidth(2)
	for i, pt := range points {
		if i == 0 {
			dc.MoveTo(xAt(i), yAt(pt.Value))
		} else {
			dc.LineTo(xAt(i), yAt(pt.Value))
		}
	}
	dc.Stroke()
	for i, pt := range points {
		dc.DrawCircle(xAt(i), yAt(pt.Value), 4)
		dc.Fill()
	}

	if fontOK {
		dc.SetRGB255(17, 24, 39)
		dc.DrawStringAnchored(fmt.Sprintf("ICR progression (target %.0f mg/dL)", p.TargetBG), ChartWidth/2, marginTop/2, 0.5, 0.5)
	}

	return dc.Image(), nil
}
