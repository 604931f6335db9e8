// Package figures renders the match charts embedded in articles.
package figures

import (
	"fmt"
	"image/color"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"goalgazer/internal/core"
)

const (
	figureWidth  = 10 * vg.Inch
	figureHeight = 5.625 * vg.Inch
	// Pixel size of a saved figure at the default 96 DPI.
	pixelWidth  = 960
	pixelHeight = 540
)

var (
	homeColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	awayColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	lineColor = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
)

// Renderer writes PNG charts for one match at a time.
type Renderer struct {
	publicPrefix string
	log          *zerolog.Logger
}

// NewRenderer creates a renderer. publicPrefix is the URL path the web
// front end serves the output directory under, e.g. "/generated/matches".
func NewRenderer(publicPrefix string, log *zerolog.Logger) *Renderer {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Renderer{publicPrefix: publicPrefix, log: log}
}

type chart struct {
	id      string
	file    string
	kind    core.FigureKind
	alt     string
	caption string
	build   func(m *core.MatchData) (*plot.Plot, error)
}

// RenderAll writes every chart the available data supports into outDir and
// returns their metadata in a fixed order. A chart that fails to render is
// logged and skipped.
func (r *Renderer) RenderAll(m *core.MatchData, a core.Availability, outDir string) ([]core.FigureMeta, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create figure directory: %w", err)
	}

	home, away := m.Match.HomeTeam.Name, m.Match.AwayTeam.Name
	var charts []chart
	if a.HasStatistics && len(statRows(m)) > 0 {
		charts = append(charts, chart{
			id:      "stats-comparison",
			file:    "stats_comparison.png",
			kind:    core.FigureStatsComparison,
			alt:     fmt.Sprintf("Team statistics comparison between %s and %s", home, away),
			caption: "Team statistics comparison",
			build:   statsComparison,
		})
	}
	if a.HasEvents && len(m.Timeline) > 0 {
		charts = append(charts, chart{
			id:      "goals-timeline",
			file:    "goals_timeline.png",
			kind:    core.FigureTimeline,
			alt:     fmt.Sprintf("Goals and cards timeline for %s vs %s", home, away),
			caption: "Match timeline",
			build:   goalsTimeline,
		})
	}
	if a.HasShotLocations {
		charts = append(charts, chart{
			id:      "shot-map",
			file:    "shot_map.png",
			kind:    core.FigureShotProxy,
			alt:     fmt.Sprintf("Shot locations for %s and %s", home, away),
			caption: "Shot map",
			build:   shotMap,
		})
	}

	figures := []core.FigureMeta{}
	for _, c := range charts {
		p, err := c.build(m)
		if err == nil {
			err = p.Save(figureWidth, figureHeight, filepath.Join(outDir, c.file))
		}
		if err != nil {
			r.log.Warn().Err(err).Str("figure", c.id).Msg("Failed to render figure")
			continue
		}
		figures = append(figures, core.FigureMeta{
			ID:      c.id,
			Src:     path.Join(r.publicPrefix, m.Match.ID, c.file),
			Alt:     c.alt,
			Caption: c.caption,
			Width:   pixelWidth,
			Height:  pixelHeight,
			Kind:    c.kind,
		})
	}
	r.log.Debug().Int("figures", len(figures)).Str("dir", outDir).Msg("Rendered figures")
	return figures, nil
}

type statRow struct {
	name       string
	home, away float64
}

// statRows pairs the stats both teams report.
func statRows(m *core.MatchData) []statRow {
	homeStats := m.Aggregates.Normalized[m.Match.HomeTeam.ID].Values()
	away := make(map[string]float64)
	for _, sv := range m.Aggregates.Normalized[m.Match.AwayTeam.ID].Values() {
		away[sv.Name] = toFloat(sv.Value)
	}
	var rows []statRow
	for _, sv := range homeStats {
		if av, ok := away[sv.Name]; ok {
			rows = append(rows, statRow{name: sv.Name, home: toFloat(sv.Value), away: av})
		}
	}
	return rows
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func statsComparison(m *core.MatchData) (*plot.Plot, error) {
	rows := statRows(m)
	homeVals := make(plotter.Values, len(rows))
	awayVals := make(plotter.Values, len(rows))
	names := make([]string, len(rows))
	for i, r := range rows {
		homeVals[i], awayVals[i], names[i] = r.home, r.away, r.name
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", m.Match.HomeTeam.Name, m.Match.AwayTeam.Name)
	p.Y.Label.Text = "Value"

	w := vg.Points(14)
	homeBars, err := plotter.NewBarChart(homeVals, w)
	if err != nil {
		return nil, err
	}
	homeBars.Color = homeColor
	homeBars.LineStyle.Width = 0
	homeBars.Offset = -w / 2

	awayBars, err := plotter.NewBarChart(awayVals, w)
	if err != nil {
		return nil, err
	}
	awayBars.Color = awayColor
	awayBars.LineStyle.Width = 0
	awayBars.Offset = w / 2

	p.Add(homeBars, awayBars)
	p.Legend.Add(m.Match.HomeTeam.Name, homeBars)
	p.Legend.Add(m.Match.AwayTeam.Name, awayBars)
	p.Legend.Top = true
	p.NominalX(names...)
	return p, nil
}

func goalsTimeline(m *core.MatchData) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Match timeline"
	p.X.Label.Text = "Minute"
	p.Y.Label.Text = "Goals"
	p.X.Min, p.X.Max = 0, 95

	homeLine := plotter.XYs{{X: 0, Y: 0}}
	awayLine := plotter.XYs{{X: 0, Y: 0}}
	var goalPts plotter.XYs
	var labels []string
	var cardPts plotter.XYs
	var h, a float64

	for _, ev := range m.Timeline {
		x := float64(ev.Minute)
		side, _ := m.SideOf(ev.TeamID)
		switch {
		case core.CountsAsGoal(ev):
			if side == core.SideAway {
				a++
				awayLine = append(awayLine, plotter.XY{X: x, Y: a})
				goalPts = append(goalPts, plotter.XY{X: x, Y: a})
			} else {
				h++
				homeLine = append(homeLine, plotter.XY{X: x, Y: h})
				goalPts = append(goalPts, plotter.XY{X: x, Y: h})
			}
			labels = append(labels, ev.PlayerName)
		case ev.Type == core.EventCard:
			cardPts = append(cardPts, plotter.XY{X: x, Y: 0})
		}
	}
	last := float64(95)
	homeLine = append(homeLine, plotter.XY{X: last, Y: h})
	awayLine = append(awayLine, plotter.XY{X: last, Y: a})

	for _, series := range []struct {
		name string
		xys  plotter.XYs
		c    color.Color
	}{
		{m.Match.HomeTeam.Name, homeLine, homeColor},
		{m.Match.AwayTeam.Name, awayLine, awayColor},
	} {
		l, err := plotter.NewLine(series.xys)
		if err != nil {
			return nil, err
		}
		l.StepStyle = plotter.PreStep
		l.Color = series.c
		l.Width = vg.Points(2)
		p.Add(l)
		p.Legend.Add(series.name, l)
	}

	if len(goalPts) > 0 {
		s, err := plotter.NewScatter(goalPts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Radius = vg.Points(4)
		s.GlyphStyle.Color = lineColor
		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: goalPts, Labels: labels})
		if err != nil {
			return nil, err
		}
		p.Add(s, lbl)
	}
	if len(cardPts) > 0 {
		s, err := plotter.NewScatter(cardPts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = color.RGBA{R: 0xe6, G: 0xb8, B: 0x00, A: 0xff}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add("cards", s)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

func shotMap(m *core.MatchData) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Shot map"
	p.X.Min, p.X.Max = 0, 100
	p.Y.Min, p.Y.Max = 0, 100
	p.HideAxes()

	outline, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 0, Y: 0}})
	if err != nil {
		return nil, err
	}
	outline.Color = lineColor
	halfway, err := plotter.NewLine(plotter.XYs{{X: 50, Y: 0}, {X: 50, Y: 100}})
	if err != nil {
		return nil, err
	}
	halfway.Color = lineColor
	p.Add(outline, halfway)

	bySide := map[core.Side]plotter.XYs{}
	for _, ev := range m.Events {
		if !ev.HasLocation() {
			continue
		}
		side, _ := m.SideOf(ev.TeamID)
		bySide[side] = append(bySide[side], plotter.XY{X: ev.X, Y: ev.Y})
	}
	for _, side := range []core.Side{core.SideHome, core.SideAway} {
		pts := bySide[side]
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Radius = vg.Points(5)
		s.GlyphStyle.Color = homeColor
		name := m.Match.HomeTeam.Name
		if side == core.SideAway {
			s.GlyphStyle.Color = awayColor
			name = m.Match.AwayTeam.Name
		}
		p.Add(s)
		p.Legend.Add(name, s)
	}
	return p, nil
}
