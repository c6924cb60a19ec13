// Package dashboard turns an analytics snapshot into chart view models. The
// charts themselves are echarts snippets built with go-echarts.
package dashboard

import (
	"html/template"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

const (
	NoAnalyticsMessage    = "Não há dados de analytics para exibir neste projeto."
	NoProjectMessage      = "Por favor, crie ou selecione um projeto."
	EmptyProjectShareText = "Nenhum lead para exibir a distribuição."
	EmptySeriesText       = "Sem dados."

	// AssetsURL is the echarts runtime every snippet expects on the page.
	AssetsURL = "https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"

	ChartIDLastSixMonths = "grafico-seis-meses"
	ChartIDLastDay       = "grafico-ultimas-24h"
	ChartIDByProject     = "grafico-por-projeto"
	ChartIDUsage         = "grafico-uso-mensal"

	unboundedHeadline = "∞"
	unboundedCaption  = "Leads"
	boundedCaption    = "de "

	chartWidth       = "100%"
	chartHeight      = "300px"
	usedColor        = "#c084fc"
	remainingColor   = "#f0f0f0"
	seriesNameLeads  = "Leads"
	usedSliceName    = "Utilizado"
	remainingSlice   = "Disponível"
	pieLabelTemplate = "{b}: {d}%"
)

var pieColors = []string{"#9f20c5", "#34d399", "#f97316", "#3b82f6", "#ef4444", "#eab308"}

// ChartPoint is one labelled value of a series.
type ChartPoint struct {
	Label string
	Value int64
}

// Chart is a rendered echarts snippet. Empty charts carry only EmptyText.
type Chart struct {
	Title     string
	Empty     bool
	EmptyText string
	Element   template.HTML
	Script    template.HTML
}

// UsageChart is the monthly quota donut plus the text drawn over its hole.
type UsageChart struct {
	Chart
	UsedPercent float64
	Remaining   float64
	Headline    string
	Caption     string
	Tooltip     string
	Unbounded   bool
}

// View holds every chart of the dashboard.
type View struct {
	ProjectName   string
	AssetsURL     string
	LastSixMonths Chart
	LastDay       Chart
	ByProject     Chart
	Usage         UsageChart
}

// NewView derives the dashboard from a snapshot.
func NewView(projectName string, snapshot model.AnalyticsSnapshot) View {
	monthly := make([]ChartPoint, 0, len(snapshot.LeadsLast6Months))
	for _, point := range snapshot.LeadsLast6Months {
		monthly = append(monthly, ChartPoint{Label: point.Name, Value: point.Leads})
	}
	hourly := make([]ChartPoint, 0, len(snapshot.LeadsLast24Hours))
	for _, point := range snapshot.LeadsLast24Hours {
		hourly = append(hourly, ChartPoint{Label: point.Hour, Value: point.Leads})
	}

	return View{
		ProjectName:   projectName,
		AssetsURL:     AssetsURL,
		LastSixMonths: NewAreaChart(ChartIDLastSixMonths, "Total de Leads (Últimos 6 Meses)", "#34d399", "rgba(52, 211, 153, 0.2)", monthly),
		LastDay:       NewAreaChart(ChartIDLastDay, "Total Leads Capturados Hoje", "#c084fc", "rgba(192, 132, 252, 0.2)", hourly),
		ByProject:     NewPieChart(snapshot.LeadsByProject),
		Usage:         NewUsageChart(snapshot.MonthlyUsage),
	}
}

// NewAreaChart draws points as a smoothed line over a fillColor area.
func NewAreaChart(chartID string, title string, color string, fillColor string, points []ChartPoint) Chart {
	if len(points) == 0 {
		return Chart{Title: title, Empty: true, EmptyText: EmptySeriesText}
	}

	labels := make([]string, 0, len(points))
	values := make([]opts.LineData, 0, len(points))
	for _, point := range points {
		labels = append(labels, point.Label)
		values = append(values, opts.LineData{Name: point.Label, Value: point.Value})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initialization(chartID)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0}),
	)
	line.SetXAxis(labels).AddSeries(seriesNameLeads, values,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: fillColor}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 3}),
	)
	snippet := line.RenderSnippet()
	return Chart{Title: title, Element: template.HTML(snippet.Element), Script: template.HTML(snippet.Script)}
}

// NewPieChart builds one slice per project; no shares or a zero total renders
// the empty-state text. echarts computes the percentages.
func NewPieChart(shares []model.ProjectShare) Chart {
	chart := Chart{Title: "Leads por Projeto", EmptyText: EmptyProjectShareText}
	var total int64
	slices := make([]opts.PieData, 0, len(shares))
	for _, share := range shares {
		value := share.Value
		if value < 0 {
			value = 0
		}
		total += value
		slices = append(slices, opts.PieData{Name: share.Name, Value: value})
	}
	if total == 0 {
		chart.Empty = true
		return chart
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(initialization(ChartIDByProject)),
		charts.WithColorsOpts(opts.Colors(pieColors)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	pie.AddSeries(seriesNameLeads, slices,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: pieLabelTemplate}),
	)
	snippet := pie.RenderSnippet()
	chart.Element = template.HTML(snippet.Element)
	chart.Script = template.HTML(snippet.Script)
	return chart
}

// NewUsageChart splits the donut into used and remaining percent. An
// unbounded plan shows the ∞ headline over an empty ring.
func NewUsageChart(usage model.MonthlyUsage) UsageChart {
	used := clampPercent(usage.Percent)
	chart := UsageChart{
		Chart:       Chart{Title: "Uso de Leads Mensal"},
		UsedPercent: used,
		Remaining:   clampPercent(100 - usage.Percent),
		Tooltip:     formatPercent(usage.Percent) + "% do plano utilizado",
		Unbounded:   usage.Limit.Unbounded,
	}
	if chart.Unbounded {
		chart.Headline = unboundedHeadline
		chart.Caption = unboundedCaption
	} else {
		chart.Headline = strconv.FormatInt(usage.Current, 10)
		chart.Caption = boundedCaption + strconv.FormatInt(usage.Limit.Value, 10)
	}

	donut := charts.NewPie()
	donut.SetGlobalOptions(
		charts.WithInitializationOpts(initialization(ChartIDUsage)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(false)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	donut.AddSeries(seriesNameLeads, []opts.PieData{
		{Name: usedSliceName, Value: chart.UsedPercent, ItemStyle: &opts.ItemStyle{Color: usedColor}},
		{Name: remainingSlice, Value: chart.Remaining, ItemStyle: &opts.ItemStyle{Color: remainingColor}},
	},
		charts.WithPieChartOpts(opts.PieChart{Radius: []string{"70%", "85%"}}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
	)
	snippet := donut.RenderSnippet()
	chart.Element = template.HTML(snippet.Element)
	chart.Script = template.HTML(snippet.Script)
	return chart
}

func initialization(chartID string) opts.Initialization {
	return opts.Initialization{ChartID: chartID, Width: chartWidth, Height: chartHeight}
}

func clampPercent(percent float64) float64 {
	if math.IsNaN(percent) || percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func formatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', -1, 64)
}
