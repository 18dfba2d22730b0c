package statushttp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"scalper/internal/ledger"
)

// handleReport renders the cumulative realized profit over the whole ledger
// as a self-contained HTML page.
func (h *handlers) handleReport(c *gin.Context) {
	if h.cfg.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger not enabled"})
		return
	}
	recs, err := h.cfg.Ledger.ReadAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	line := buildProfitChart(recs)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := line.Render(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func buildProfitChart(recs []ledger.Record) *charts.Line {
	xAxis := make([]string, 0, len(recs))
	points := make([]opts.LineData, 0, len(recs))
	cumulative := 0.0
	for _, rec := range recs {
		cumulative += rec.Profit
		xAxis = append(xAxis, rec.ClosedAt.Format("01-02 15:04"))
		points = append(points, opts.LineData{Value: cumulative})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Realized profit",
			Subtitle: "cumulative over " + time.Now().Format("2006-01-02"),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("cumulative", points,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}
