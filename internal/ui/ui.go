// Package ui renders CLI output for the status and sync commands.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow

	entityStyle = lipgloss.NewStyle().Width(18)
	countStyle  = lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
)

// Connectivity renders the online/offline badge.
func Connectivity(online bool) string {
	if online {
		return onlineStyle.Render("● online")
	}
	return offlineStyle.Render("● offline")
}

// StatusTable renders per-collection pending work. Collections with nothing
// queued are dimmed so the eye lands on the ones that matter.
func StatusTable(waiting, pending map[string]int) string {
	names := make([]string, 0, len(waiting))
	for name := range waiting {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Pending changes"))
	b.WriteString("\n")
	b.WriteString(entityStyle.Render("collection"))
	b.WriteString(countStyle.Render("waiting"))
	b.WriteString(countStyle.Render("deleting"))
	b.WriteString("\n")

	for _, name := range names {
		w, p := waiting[name], pending[name]
		line := entityStyle.Render(name) +
			countStyle.Render(fmt.Sprintf("%d", w)) +
			countStyle.Render(fmt.Sprintf("%d", p))
		if w == 0 && p == 0 {
			line = dimStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// LastSync renders the last successful pass time, or a hint when none.
func LastSync(t time.Time) string {
	if t.IsZero() {
		return dimStyle.Render("never synced")
	}
	return dimStyle.Render("last sync " + t.Local().Format("2006-01-02 15:04:05"))
}

// PassLine summarizes one completed sync pass for the terminal.
func PassLine(succeeded, failed int, skipped []string) string {
	parts := []string{fmt.Sprintf("%d pushed", succeeded)}
	if failed > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	if len(skipped) > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d skipped", len(skipped))))
	}
	return strings.Join(parts, ", ")
}

// RecordFailure renders one per-record failure line.
func RecordFailure(entity, id, action string, err error) string {
	return warnStyle.Render(fmt.Sprintf("  %s %s (%s): %v", entity, id, action, err))
}
