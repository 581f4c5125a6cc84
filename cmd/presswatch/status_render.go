package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"presswatch/internal/api"
	"presswatch/internal/daemon"
	"presswatch/internal/queue"
)

var titleCaser = cases.Title(language.English)

func displayJobType(jobType string) string {
	return titleCaser.String(jobType)
}

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func renderStatus(status daemon.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Presswatch daemon\n")
	fmt.Fprintf(&b, "  Running:   %s (pid %d)\n", yesNo(status.Running), status.PID)
	if !status.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  Uptime:    %s\n", time.Since(status.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(&b, "  Paused:    %s\n", yesNo(status.Paused))
	fmt.Fprintf(&b, "  API:       %s\n", status.APIAddr)
	fmt.Fprintf(&b, "  Queue DB:  %s\n", status.QueueDBPath)
	fmt.Fprintf(&b, "  Items:     %d pending, %d running, %d completed, %d failed, %d canceled\n",
		status.Stats.Pending, status.Stats.Running, status.Stats.Completed,
		status.Stats.Failed, status.Stats.Canceled)
	return b.String()
}

func jobRows(jobs []api.JobSummary) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			displayJobType(job.JobType),
			job.Status,
			fmt.Sprintf("%d/%d", job.ProcessedCount, job.TotalCount),
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

func itemRows(items []api.ItemSummary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		detail := item.ErrorMessage
		if detail == "" && len(item.Result) > 0 {
			detail = compactDetail(string(item.Result))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			fmt.Sprintf("%d", item.JobID),
			fmt.Sprintf("%d", item.PaperID),
			displayJobType(item.JobType),
			item.Status,
			detail,
		})
	}
	return rows
}

func statsRows(stats queue.Stats) [][]string {
	if stats.Total == 0 {
		return nil
	}
	rows := make([][]string, 0, 6)
	for _, entry := range []struct {
		label string
		count int
	}{
		{"Pending", stats.Pending},
		{"Running", stats.Running},
		{"Completed", stats.Completed},
		{"Failed", stats.Failed},
		{"Canceled", stats.Canceled},
	} {
		if entry.count == 0 {
			continue
		}
		rows = append(rows, []string{entry.label, fmt.Sprintf("%d", entry.count)})
	}
	rows = append(rows, []string{"Total", fmt.Sprintf("%d", stats.Total)})
	return rows
}

func compactDetail(detail string) string {
	detail = strings.Join(strings.Fields(detail), " ")
	if len(detail) > 60 {
		return detail[:57] + "..."
	}
	return detail
}
