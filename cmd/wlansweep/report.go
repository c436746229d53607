package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/iti/wlansweep"
)

var reportInput string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a results file",
	Long:  "report reads the rows a sweep appended to a results file and renders them as a table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		samples, err := wlansweep.ReadSamples(reportInput)
		if err != nil {
			return err
		}
		return renderReport(cmd.OutOrStdout(), samples)
	},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	peakStyle   = cellStyle.Foreground(lipgloss.Color("10"))
)

// renderReport writes the samples and their summary to w
func renderReport(w io.Writer, samples []wlansweep.GoodputSample) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "no samples")
		return err
	}
	sum := wlansweep.SummarizeSamples(samples)

	rows := make([][]string, 0, len(samples))
	for _, gs := range samples {
		rows = append(rows, []string{strconv.Itoa(gs.StationCount), strconv.FormatFloat(gs.ThroughputMbps, 'f', 3, 64)})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("STATIONS", "MBIT/S").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return headerStyle
			}
			if row < len(samples) && samples[row].StationCount == sum.PeakAt && col == 1 {
				return peakStyle
			}
			return cellStyle
		})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "samples %d  mean %.3f  std %.3f  min %.3f  max %.3f (at %d stations)\n",
		sum.Samples, sum.MeanMbps, sum.StdMbps, sum.MinMbps, sum.MaxMbps, sum.PeakAt)
	return err
}

func init() {
	reportCmd.Flags().StringVar(&reportInput, "input", "data.txt", "Path to the results file")
}
