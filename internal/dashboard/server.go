// Package dashboard renders the exported posts as echarts pages.
package dashboard

import (
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/qepting91/viralscout/internal/domain"
	"github.com/qepting91/viralscout/internal/storage"
)

// TopN is the number of posts shown in the score chart.
const TopN = 15

const labelRunes = 40

// Handler serves the dashboard for the NDJSON export at dataFile. The file
// is re-read on every request so a running warmer shows up immediately.
func Handler(dataFile string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts, err := storage.LoadPosts(dataFile)
		if err != nil {
			logger.Warn("Dashboard data unreadable", "path", dataFile, "err", err)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := Render(w, posts); err != nil {
			logger.Warn("Dashboard render failed", "err", err)
		}
	})
}

// Render writes the platform share pie followed by the top posts bar.
func Render(w io.Writer, posts []domain.UnifiedPost) error {
	if err := platformPie(posts).Render(w); err != nil {
		return err
	}
	return topPostsBar(posts).Render(w)
}

func platformPie(posts []domain.UnifiedPost) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "viralscout", Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Platform Share", Subtitle: "posts in the latest export"}),
	)

	counts := make(map[domain.Platform]int)
	for _, p := range posts {
		counts[p.Platform]++
	}

	var items []opts.PieData
	for _, p := range domain.AllPlatforms() {
		if n := counts[p]; n > 0 {
			items = append(items, opts.PieData{Name: string(p), Value: n})
		}
	}
	pie.AddSeries("Posts", items)
	return pie
}

func topPostsBar(posts []domain.UnifiedPost) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Top Posts by Virality"}),
	)

	top := TopPosts(posts, TopN)
	x := make([]string, 0, len(top))
	y := make([]opts.BarData, 0, len(top))
	for _, p := range top {
		x = append(x, Label(p))
		y = append(y, opts.BarData{Value: p.Score, Name: p.URL})
	}
	bar.SetXAxis(x).AddSeries("Score", y)
	return bar
}

// TopPosts returns the n highest-scoring posts without reordering posts.
func TopPosts(posts []domain.UnifiedPost, n int) []domain.UnifiedPost {
	sorted := slices.Clone(posts)
	slices.SortStableFunc(sorted, func(a, b domain.UnifiedPost) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return sorted[:min(n, len(sorted))]
}

// Label is the short axis label for a post.
func Label(p domain.UnifiedPost) string {
	text := p.Title
	if text == "" {
		text = p.Content
	}
	if text == "" {
		text = p.ID
	}
	r := []rune(text)
	if len(r) > labelRunes {
		return string(r[:labelRunes-1]) + "…"
	}
	return text
}
