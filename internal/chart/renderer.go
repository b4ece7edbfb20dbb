package chart

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"

	"mm_stats/internal/domain"
	"mm_stats/internal/stats"

	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrNothingToPlot is returned when neither snapshots nor prices carry a value.
var ErrNothingToPlot = errors.New("nothing to plot")

var (
	closestSell  = color.NRGBA{0, 0, 255, 255}
	closestBuy   = color.NRGBA{0, 160, 0, 255}
	furthestSell = color.NRGBA{0, 180, 220, 255}
	furthestBuy  = color.NRGBA{130, 200, 0, 255}
	priceColor   = color.NRGBA{230, 120, 0, 255}
	altColor     = color.NRGBA{150, 0, 150, 255}
)

// Options controls the rendered image.
type Options struct {
	Output       string
	Width        int
	Height       int
	ShowFurthest bool
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
}

// Renderer draws a tracked account's quote history as a PNG step chart.
type Renderer struct {
	opts   Options
	logger *slog.Logger
}

// NewRenderer creates a renderer. Non-positive sizes fall back to 1280x720.
func NewRenderer(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.Output == "" {
		opts.Output = "mmstats.png"
	}
	return &Renderer{
		opts:   opts,
		logger: slog.Default().With("module", "chart"),
	}
}

// sample is one value of a series; ok is false where the series has a gap.
type sample struct {
	ts float64
	v  float64
	ok bool
}

type series struct {
	name    string
	samples []sample
	color   color.NRGBA
	step    bool
}

// Render draws the closest sell and buy prices of every snapshot as step lines,
// the furthest prices when enabled, and the reference prices as plain lines.
func (r *Renderer) Render(snapshots []domain.Snapshot, prices, alternativePrices []domain.PricePoint) error {
	all := r.collect(stats.Series(snapshots), prices, alternativePrices)

	t0, t1, ok := span(all)
	if !ok {
		return ErrNothingToPlot
	}

	p := plot.New()
	p.Title.Text = "Market maker quotes"
	p.X.Label.Text = "time (UTC)"
	p.Y.Label.Text = "price"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04"}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range all {
		lines, err := s.lines(t1)
		if err != nil {
			return fmt.Errorf("plot %s: %w", s.name, err)
		}
		for i, l := range lines {
			p.Add(l)
			if i == 0 {
				p.Legend.Add(s.name, l)
			}
		}
	}

	p.X.Min, p.X.Max = t0, t1
	if r.opts.MinPrice != nil || r.opts.MaxPrice != nil {
		if r.opts.MinPrice != nil {
			p.Y.Min = r.opts.MinPrice.InexactFloat64()
		}
		if r.opts.MaxPrice != nil {
			p.Y.Max = r.opts.MaxPrice.InexactFloat64()
		}
		// a flat unpinned axis is padded by plot itself; a pinned one must be open
		if p.Y.Max <= p.Y.Min {
			return fmt.Errorf("empty price axis [%g, %g]", p.Y.Min, p.Y.Max)
		}
	}

	canvas := vgimg.New(vg.Points(float64(r.opts.Width)), vg.Points(float64(r.opts.Height)))
	p.Draw(draw.New(canvas))

	if err := imaging.Save(canvas.Image(), r.opts.Output); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	r.logger.Info("Chart written",
		slog.String("path", r.opts.Output),
		slog.Int("snapshots", len(snapshots)),
		slog.Int("prices", len(prices)),
	)
	return nil
}

func (r *Renderer) collect(points []stats.Stats, prices, alternativePrices []domain.PricePoint) []series {
	all := []series{
		{name: "price", samples: priceSamples(prices), color: priceColor},
		{name: "alternative price", samples: priceSamples(alternativePrices), color: altColor},
	}
	if r.opts.ShowFurthest {
		all = append(all,
			series{name: "furthest sell", samples: statSamples(points, func(s stats.Stats) *domain.Amount { return s.FurthestSellPrice }), color: furthestSell, step: true},
			series{name: "furthest buy", samples: statSamples(points, func(s stats.Stats) *domain.Amount { return s.FurthestBuyPrice }), color: furthestBuy, step: true},
		)
	}
	return append(all,
		series{name: "closest sell", samples: statSamples(points, func(s stats.Stats) *domain.Amount { return s.ClosestSellPrice }), color: closestSell, step: true},
		series{name: "closest buy", samples: statSamples(points, func(s stats.Stats) *domain.Amount { return s.ClosestBuyPrice }), color: closestBuy, step: true},
	)
}

func priceSamples(prices []domain.PricePoint) []sample {
	out := make([]sample, len(prices))
	for i, p := range prices {
		out[i] = sample{ts: float64(p.Timestamp), v: p.Price.Float64(), ok: true}
	}
	return out
}

func statSamples(points []stats.Stats, pick func(stats.Stats) *domain.Amount) []sample {
	out := make([]sample, len(points))
	for i, st := range points {
		out[i].ts = float64(st.Timestamp)
		if v := pick(st); v != nil {
			out[i].v = v.Float64()
			out[i].ok = true
		}
	}
	return out
}

// span returns the time axis and whether any series holds a value.
func span(all []series) (t0, t1 float64, ok bool) {
	first := true
	for _, s := range all {
		for _, sm := range s.samples {
			if first {
				t0, t1 = sm.ts, sm.ts
				first = false
			}
			t0 = min(t0, sm.ts)
			t1 = max(t1, sm.ts)
			ok = ok || sm.ok
		}
	}
	if t1 == t0 {
		t1 = t0 + 1
	}
	return t0, t1, ok
}

// lines splits the series at its gaps. A step series holds each value until
// the next sample, and its final value until end.
func (s series) lines(end float64) ([]*plotter.Line, error) {
	var (
		out []*plotter.Line
		run plotter.XYs
	)
	flush := func(until float64) error {
		if len(run) == 0 {
			return nil
		}
		if s.step {
			run = append(run, plotter.XY{X: until, Y: run[len(run)-1].Y})
		}
		l, err := plotter.NewLine(run)
		if err != nil {
			return err
		}
		l.LineStyle.Color = s.color
		l.LineStyle.Width = vg.Points(1.5)
		if s.step {
			l.StepStyle = plotter.PostStep
		}
		out = append(out, l)
		run = nil
		return nil
	}

	for _, sm := range s.samples {
		if !sm.ok {
			if err := flush(sm.ts); err != nil {
				return nil, err
			}
			continue
		}
		run = append(run, plotter.XY{X: sm.ts, Y: sm.v})
	}
	if err := flush(end); err != nil {
		return nil, err
	}
	return out, nil
}
