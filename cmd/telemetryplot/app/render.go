package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0
	valueLabels    = 4

	minPlotWidth   = 200
	minPanelHeight = 80

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 70
	defaultBottomBorder = 60
	defaultRightBorder  = 30
	defaultPanelGap     = 30

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

var errNoData = errors.New("no sampled telemetry to plot")

// BorderConfig defines the sizes of white space around the panels
type BorderConfig struct {
	Top    int // Space for the first panel title
	Left   int // Space for value scales
	Bottom int // Space for the time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for the telemetry plot
type RenderConfig struct {
	// Time display configuration
	TimeFormat     string         // Format string for time scale labels
	DatetimeFormat string         // Format string for the information bar
	Location       *time.Location // Timezone for time display

	// Plot geometry
	Width       int // Width of the plotted area in pixels
	PanelHeight int // Height of each panel in pixels
	PanelGap    int // Space between panels, holds the panel title

	FontSize     float64
	BorderConfig BorderConfig
}

// panel is a single strip chart of one value over time
type panel struct {
	title  string
	unit   string
	bounds Bounds
	value  func(Point) float64
	area   image.Rectangle
}

// TelemetryRenderer draws telemetry series as stacked strip charts
type TelemetryRenderer struct {
	config RenderConfig
}

// NewTelemetryRenderer creates a new renderer with the given configuration
func NewTelemetryRenderer(config RenderConfig) (*TelemetryRenderer, error) {
	// Set defaults for zero values
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.PanelHeight == 0 {
		config.PanelHeight = defaultPanelHeight
	}
	if config.PanelGap == 0 {
		config.PanelGap = defaultPanelGap
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	if config.Width < minPlotWidth || config.PanelHeight < minPanelHeight {
		return nil, fmt.Errorf("plot must be at least %dx%d pixels: %dx%d given",
			minPlotWidth, minPanelHeight, config.Width, config.PanelHeight)
	}

	return &TelemetryRenderer{config: config}, nil
}

// Render creates an image of the series with annotations
func (r *TelemetryRenderer) Render(series *TelemetrySeries) (*image.RGBA, error) {
	if series.Empty() {
		return nil, errNoData
	}

	panels := []*panel{
		{
			title:  "Acceleration",
			unit:   "m/s²",
			bounds: series.AccelBounds,
			value:  func(p Point) float64 { return p.Accel },
		},
		{
			title:  "Angular rate",
			unit:   "rad/s",
			bounds: series.GyroBounds,
			value:  func(p Point) float64 { return p.Gyro },
		},
	}

	b := r.config.BorderConfig
	fullWidth := b.Left + r.config.Width + b.Right
	fullHeight := b.Top + len(panels)*r.config.PanelHeight + (len(panels)-1)*r.config.PanelGap + b.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	for i, p := range panels {
		top := b.Top + i*(r.config.PanelHeight+r.config.PanelGap)
		p.area = image.Rect(b.Left, top, b.Left+r.config.Width, top+r.config.PanelHeight)
	}

	ann, err := newAnnotator(annotatorConfig{
		TimeFormat:     r.config.TimeFormat,
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        b,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	for i, p := range panels {
		drawGrid(img, p.area)
		r.renderPanel(img, p, series, seriesColor(i, len(panels)))
	}

	if err = ann.annotate(img, panels, series); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// renderPanel plots the panel value of every point, connecting consecutive points
func (r *TelemetryRenderer) renderPanel(img *image.RGBA, p *panel, series *TelemetrySeries, c color.Color) {
	duration := float64(series.Duration())
	span := p.bounds.Span()
	w, h := p.area.Dx()-1, p.area.Dy()-1

	prev := image.Point{X: -1}
	for _, pt := range series.Points {
		xRatio := float64(pt.Timestamp.Sub(series.TimestampStart)) / duration
		yRatio := (p.value(pt) - p.bounds.Min) / span

		cur := image.Point{
			X: p.area.Min.X + int(xRatio*float64(w)),
			Y: p.area.Max.Y - 1 - int(yRatio*float64(h)),
		}
		if prev.X < 0 {
			img.Set(cur.X, cur.Y, c)
		} else {
			drawLine(img, prev, cur, c)
		}
		prev = cur
	}
}

// drawGrid outlines the area and draws horizontal guides at every value label
func drawGrid(img *image.RGBA, area image.Rectangle) {
	for i := 1; i < valueLabels-1; i++ {
		y := area.Max.Y - 1 - i*(area.Dy()-1)/(valueLabels-1)
		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
	}

	for x := area.Min.X; x < area.Max.X; x++ {
		img.Set(x, area.Min.Y, foregroundColor)
		img.Set(x, area.Max.Y-1, foregroundColor)
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		img.Set(area.Min.X, y, foregroundColor)
		img.Set(area.Max.X-1, y, foregroundColor)
	}
}

// drawLine draws a one pixel wide segment between a and b
func drawLine(img *image.RGBA, a, b image.Point, c color.Color) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	e := dx + dy
	for {
		img.Set(a.X, a.Y, c)
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(foregroundColor))

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, panels []*panel, series *TelemetrySeries) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	for _, p := range panels {
		if err := a.drawTitle(p); err != nil {
			return fmt.Errorf("drawing %s title: %w", p.title, err)
		}
		if err := a.drawValueScale(img, p); err != nil {
			return fmt.Errorf("drawing %s scale: %w", p.title, err)
		}
	}
	if err := a.drawTimeScale(img, panels[len(panels)-1].area, series); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, series); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawTitle(p *panel) error {
	label := fmt.Sprintf("%s, %s", p.title, p.unit)
	pt := freetype.Pt(p.area.Min.X, p.area.Min.Y-a.fontHeight()/2)
	_, err := a.context.DrawString(label, pt)
	return err
}

func (a *annotator) drawValueScale(img *image.RGBA, p *panel) error {
	metrics := a.fontFace.Metrics()
	fontHeight := a.fontHeight()

	for i := 0; i < valueLabels; i++ {
		value := p.bounds.Min + float64(i)*(p.bounds.Max-p.bounds.Min)/float64(valueLabels-1)
		y := p.area.Max.Y - 1 - i*(p.area.Dy()-1)/(valueLabels-1)

		// Draw tick mark
		for x := p.area.Min.X - tickMarkLength; x < p.area.Min.X; x++ {
			img.Set(x, y, foregroundColor)
		}

		label := humanize.FtoaWithDigits(value, 2)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(p.area.Min.X-tickMarkLength-3-width, y+fontHeight/2-metrics.Descent.Round())
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, series *TelemetrySeries) error {
	duration := series.Duration()
	timeStep := calculateNiceTimeStep(duration, area.Dx())
	textY := area.Max.Y + tickMarkLength + a.fontHeight()

	start := series.TimestampStart.Truncate(timeStep)
	if start.Before(series.TimestampStart) {
		start = start.Add(timeStep)
	}

	for t := start; !t.After(series.TimestampEnd); t = t.Add(timeStep) {
		xRatio := float64(t.Sub(series.TimestampStart)) / float64(duration)
		x := area.Min.X + int(xRatio*float64(area.Dx()-1))

		// Draw tick mark
		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, foregroundColor)
		}

		label := t.In(a.config.Location).Format(a.config.TimeFormat)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-width/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, series *TelemetrySeries) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		series.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		series.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Readings: %s", humanize.Comma(int64(len(series.Points)))))
	if series.Skipped > 0 {
		sb.WriteString(fmt.Sprintf(" (%s without data)", humanize.Comma(int64(series.Skipped))))
	}

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - metrics.Descent.Round() - 3

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

func calculateNiceTimeStep(duration time.Duration, width int) time.Duration {
	desiredSteps := max(float64(width)/pixelsPerLabel, 1)
	roughStep := duration.Seconds() / desiredSteps

	// Nice time intervals in seconds
	niceIntervals := []float64{
		1,    // 1 second
		2,    // 2 seconds
		5,    // 5 seconds
		10,   // 10 seconds
		15,   // 15 seconds
		30,   // 30 seconds
		60,   // 1 minute
		300,  // 5 minutes
		600,  // 10 minutes
		900,  // 15 minutes
		1800, // 30 minutes
		3600, // 1 hour
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}

	return time.Hour * 2
}
