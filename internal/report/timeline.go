package report

import (
	"field-route-service/internal/domain"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

const clockLayout = "15:04"

var (
	onTimeColor = color.New(color.FgGreen)
	earlyColor  = color.New(color.FgCyan)
	lateColor   = color.New(color.FgRed, color.Bold)
	errorColor  = color.New(color.FgMagenta, color.Bold)
)

// StatusLabel renders an entry status with its terminal color.
func StatusLabel(e domain.TimelineEntry) string {
	switch {
	case e.Err != nil:
		return errorColor.Sprint("error")
	case e.Status == domain.EntryLate:
		return lateColor.Sprintf("late +%dm", e.DelayMinutes)
	case e.Status == domain.EntryEarly:
		return earlyColor.Sprintf("early -%dm", e.DelayMinutes)
	default:
		return onTimeColor.Sprint("on time")
	}
}

// WriteTimeline prints one row per stop followed by the day summary.
func WriteTimeline(w io.Writer, stops []domain.Stop, tl *domain.RouteTimeline) error {
	if tl == nil {
		_, err := fmt.Fprintln(w, "No timeline.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Stop", "Address", "Scheduled", "Arrive", "Start", "Depart", "Drive", "Status"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, e := range tl.Entries {
		address, scheduled := "", "-"
		if i < len(stops) {
			address = stops[i].Address
			if stops[i].ScheduledTime != nil {
				scheduled = stops[i].ScheduledTime.String()
			}
		}
		drive := "-"
		if e.Travel != nil {
			drive = formatDrive(e.Travel.Duration())
		}
		if e.Err != nil {
			address = e.Err.Reason
		}

		data = append(data, []string{
			strconv.Itoa(i + 1),
			e.StopID,
			address,
			scheduled,
			e.EstimatedArrival.Format(clockLayout),
			e.ActualStart.Format(clockLayout),
			e.EstimatedDeparture.Format(clockLayout),
			drive,
			StatusLabel(e),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if tl.LeaveHomeBy != nil {
		fmt.Fprintf(w, "Leave home by: %s\n", tl.LeaveHomeBy.Format(clockLayout))
	}
	if tl.HomeArrival != nil {
		fmt.Fprintf(w, "Home arrival: %s\n", tl.HomeArrival.Format(clockLayout))
	}
	_, err := fmt.Fprintf(w, "Total drive: %s over %.1f km\n",
		formatDrive(time.Duration(tl.TotalDriveSeconds)*time.Second),
		float64(tl.TotalDistanceMeters)/1000,
	)
	return err
}

func formatDrive(d time.Duration) string {
	d = d.Round(time.Minute)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
