package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"uvabs/internal/models"
)

const (
	plotWidth  = 760
	plotHeight = 300
	plotMargin = 45
)

var (
	plotAxis = color.RGBA{120, 120, 120, 255}
	plotLine = color.RGBA{20, 90, 180, 255}
)

// RenderPNG draws a small preview chart of a corrected spectrum for the
// e-mailed report.
func RenderPNG(cs *models.CorrectedSpectrum) ([]byte, error) {
	if len(cs.Points) == 0 {
		return nil, fmt.Errorf("no points to plot")
	}

	img := image.NewRGBA(image.Rect(0, 0, plotWidth, plotHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	minV, maxV := cs.Points[0].Absorbance, cs.Points[0].Absorbance
	for _, pt := range cs.Points {
		if pt.Absorbance < minV {
			minV = pt.Absorbance
		}
		if pt.Absorbance > maxV {
			maxV = pt.Absorbance
		}
	}
	if maxV == minV {
		maxV = minV + 1 // flat spectrum still plots
	}

	left, right := plotMargin, plotWidth-plotMargin
	top, bottom := plotMargin, plotHeight-plotMargin

	drawLine(img, left, top, left, bottom, plotAxis)
	drawLine(img, left, bottom, right, bottom, plotAxis)

	toXY := func(i int, v float64) (int, int) {
		x := left + i*(right-left)/(len(cs.Points)-1)
		y := bottom - int(float64(bottom-top)*(v-minV)/(maxV-minV))
		return x, y
	}

	prevX, prevY := toXY(0, cs.Points[0].Absorbance)
	for i, pt := range cs.Points[1:] {
		x, y := toXY(i+1, pt.Absorbance)
		drawLine(img, prevX, prevY, x, y, plotLine)
		prevX, prevY = x, y
	}

	title := fmt.Sprintf("sample %s  ws %d  blank %s  D=%g  L=%g cm",
		cs.SerialNo, cs.WaterSampleID, cs.BlankFile, cs.Dilution, cs.CuvetteLenCM)
	label(img, left, top-10, title)
	label(img, left-5, bottom+15, fmt.Sprintf("%d nm", cs.Points[0].WavelengthNM))
	label(img, right-40, bottom+15, fmt.Sprintf("%d nm", cs.Points[len(cs.Points)-1].WavelengthNM))
	label(img, 2, top+5, fmt.Sprintf("%.3f", maxV))
	label(img, 2, bottom, fmt.Sprintf("%.3f", minV))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode plot: %w", err)
	}
	return buf.Bytes(), nil
}

func label(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawLine rasterises a segment with the integer midpoint algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
