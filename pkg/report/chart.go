//Package report renders a per-video review page from a finished tracking
//result: trajectory charts and the verdict timeline, as a standalone HTML
//file next to the processed video.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wicketvision/drs-tracker/pkg/track"
)

//Write renders the review page for result to w.
func Write(w io.Writer, result *track.TrackingResult) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("DRS review %s", result.VideoID)
	page.AddCharts(trajectoryChart(result), verdictChart(result))
	return page.Render(w)
}

//WriteFile renders the review page to a file.
func WriteFile(path string, result *track.TrackingResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: could not create '%s': %w", path, err)
	}
	defer f.Close()
	return Write(f, result)
}

//trajectoryChart plots the ball's progress along the pitch and its height
//over time. Predicted samples get their own series so gaps filled by
//extrapolation stay visible during review.
func trajectoryChart(result *track.TrackingResult) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Trajectory — video %s", result.VideoID),
			Subtitle: fmt.Sprintf("%d samples, overall confidence %.2f", len(result.Trajectory), result.Confidence),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "normalized position"}),
	)

	xs := make([]string, 0, len(result.Trajectory))
	pitchAxis := make([]opts.LineData, 0, len(result.Trajectory))
	height := make([]opts.LineData, 0, len(result.Trajectory))
	predicted := make([]opts.LineData, 0, len(result.Trajectory))
	for _, s := range result.Trajectory {
		xs = append(xs, fmt.Sprintf("%.3f", s.T))
		pitchAxis = append(pitchAxis, opts.LineData{Value: s.Pos.Y})
		height = append(height, opts.LineData{Value: s.Pos.Z})
		if s.Predicted {
			predicted = append(predicted, opts.LineData{Value: s.Pos.Z})
		} else {
			predicted = append(predicted, opts.LineData{Value: nil})
		}
	}

	line.SetXAxis(xs).
		AddSeries("pitch axis", pitchAxis).
		AddSeries("height", height).
		AddSeries("height (predicted)", predicted)
	return line
}

//verdictChart plots the per-sample distance to the wicket against the hit
//tolerance, with the likelihood series underneath.
func verdictChart(result *track.TrackingResult) *charts.Line {
	line := charts.NewLine()
	subtitle := "no stumps resolved — no verdicts"
	if result.Summary != nil {
		subtitle = fmt.Sprintf("summary: %s at t=%.2fs (distance %.2f)",
			result.Summary.Decision, result.Summary.T, result.Summary.DistanceToWicket)
	}
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "LBW verdict series", Subtitle: subtitle}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "distance / likelihood"}),
	)

	xs := make([]string, 0, len(result.Verdicts))
	distance := make([]opts.LineData, 0, len(result.Verdicts))
	likelihood := make([]opts.LineData, 0, len(result.Verdicts))
	for _, v := range result.Verdicts {
		xs = append(xs, fmt.Sprintf("%.3f", v.T))
		distance = append(distance, opts.LineData{Value: v.DistanceToWicket})
		likelihood = append(likelihood, opts.LineData{Value: v.Likelihood})
	}

	line.SetXAxis(xs).
		AddSeries("distance to wicket", distance).
		AddSeries("likelihood", likelihood)
	return line
}
