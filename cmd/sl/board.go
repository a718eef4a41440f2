package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"scoutline/internal/board"
	"scoutline/internal/domain"
)

var initiativeColors = map[string]lipgloss.Color{
	"blue":   lipgloss.Color("#3b82f6"),
	"green":  lipgloss.Color("#22c55e"),
	"purple": lipgloss.Color("#a855f7"),
	"orange": lipgloss.Color("#f97316"),
	"red":    lipgloss.Color("#ef4444"),
}

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(34)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d16d7a")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d")).Strikethrough(true)
	priorityStyle = map[domain.Priority]lipgloss.Style{
		domain.P1: lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
		domain.P2: lipgloss.NewStyle().Foreground(lipgloss.Color("#f39c12")),
		domain.P3: lipgloss.NewStyle().Foreground(lipgloss.Color("#5f9fb0")),
	}
)

func colorFor(name string) lipgloss.Color {
	if c, ok := initiativeColors[name]; ok {
		return c
	}
	return initiativeColors[domain.DefaultColor]
}

// renderBoard draws the window columns side by side, then one block per
// initiative in its palette color.
func renderBoard(b board.Board, now time.Time) string {
	var columns []string
	for _, w := range b.Windows {
		lines := []string{headerStyle.Render(fmt.Sprintf("%s (%d)", w.Label, len(w.Items)))}
		for _, it := range w.Items {
			lines = append(lines, renderItem(it, now))
		}
		if len(w.Items) == 0 {
			lines = append(lines, mutedStyle.Render("nothing here"))
		}
		columns = append(columns, columnStyle.Render(strings.Join(lines, "\n")))
	}
	var sections []string
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, columns...))

	for _, g := range b.ActiveInitiatives {
		sections = append(sections, renderInitiative(g, now))
	}
	for _, g := range b.ClosedInitiatives {
		sections = append(sections, renderInitiative(g, now))
	}
	if b.ClosedCount > 0 {
		sections = append(sections, mutedStyle.Render(fmt.Sprintf("%d completed or closed item(s)", b.ClosedCount)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderInitiative(g board.InitiativeGroup, now time.Time) string {
	color := colorFor(g.Initiative.Color)
	title := g.Initiative.Name
	if g.Initiative.DueDate != nil {
		title += " · due " + g.Initiative.DueDate.Format("2006-01-02")
	}
	if g.Initiative.Status == domain.InitiativeCompleted {
		title += " · completed"
	}
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)}
	for _, it := range g.Items {
		lines = append(lines, renderItem(it, now))
	}
	if len(g.Items) == 0 {
		lines = append(lines, mutedStyle.Render("no open items"))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(color).
		PaddingLeft(1).
		MarginTop(1).
		Render(strings.Join(lines, "\n"))
}

func renderItem(it domain.TrackableItem, now time.Time) string {
	prio := priorityStyle[it.Priority].Render(string(it.Priority))
	title := it.Title
	if it.Status.IsDone() {
		title = doneStyle.Render(title)
	}
	line := prio + " " + title
	switch {
	case board.Overdue(it, now):
		line += " " + overdueStyle.Render("overdue "+it.DueDate.Format("01-02"))
	case it.DueDate != nil:
		line += " " + mutedStyle.Render(it.DueDate.Format("01-02"))
	}
	return line
}
