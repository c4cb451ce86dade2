package cmd

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/szellmann/warpvr/renderer"
	"github.com/szellmann/warpvr/session"
)

func displaySessionStats(title string, stats session.Stats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Frames", fmt.Sprintf("%d", stats.Frames)})
	if stats.RejectedCameras != 0 {
		table.Append([]string{"Rejected cameras", fmt.Sprintf("%d", stats.RejectedCameras)})
	}
	if stats.StaleFrames != 0 {
		table.Append([]string{"Stale frames", fmt.Sprintf("%d", stats.StaleFrames)})
	}
	if stats.RenderTime != 0 {
		table.Append([]string{"Avg render time", stats.AvgRenderTime().String()})
		table.Append([]string{"Avg send time", stats.AvgSendTime().String()})
	}
	if stats.RoundTripTime != 0 {
		table.Append([]string{"Avg round trip", stats.AvgRoundTripTime().String()})
	}
	table.Append([]string{"Last frame", stats.LastFrameTime.String()})
	table.Append([]string{"Bytes in", fmt.Sprintf("%d", stats.BytesIn)})
	table.Append([]string{"Bytes out", fmt.Sprintf("%d", stats.BytesOut)})

	table.Render()
	logger.Noticef("%s statistics\n%s", title, buf.String())
}

func displayViewerStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Frames drawn", "Frames received", "Points", "Last upload", "Avg draw time"})
	table.Append([]string{
		fmt.Sprintf("%d", stats.FramesDrawn),
		fmt.Sprintf("%d", stats.FramesReceived),
		fmt.Sprintf("%d", stats.Points),
		stats.LastResetTime.String(),
		stats.AvgRenderTime().String(),
	})

	table.Render()
	logger.Noticef("display statistics\n%s", buf.String())
}
