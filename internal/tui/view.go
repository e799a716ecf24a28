package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/developer-yasir/support-panel/internal/api/dto"
	"github.com/developer-yasir/support-panel/internal/realtime"
	"github.com/developer-yasir/support-panel/internal/sla"
)

func renderHeader(app *App) string {
	title := "Support Panel"
	if app.window != "" {
		title += "  " + app.window
	}
	line := StyleHeader.Render(title) + "  " + renderConn(app.connState)
	if app.newTickets > 0 {
		line += "  " + StyleBadge.Render(fmt.Sprintf("+%d new", app.newTickets))
	}
	return line
}

func renderConn(s realtime.State) string {
	label := "live: " + s.String()
	switch s {
	case realtime.StateOpen:
		return StyleConnOpen.Render(label)
	case realtime.StateConnecting, realtime.StateReconnecting:
		return StyleConnPending.Render(label)
	default:
		return StyleConnDown.Render(label)
	}
}

func renderStats(app *App) string {
	if app.snapshot == nil {
		return StyleDim.Render("loading ticket stats...")
	}
	s := app.snapshot
	cards := []string{
		card("Total", s.TotalTickets),
		card("Open", s.OpenTickets),
		card("In progress", s.InProgressTickets),
		card("High priority", s.HighPriorityTickets),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func card(label string, value int) string {
	return StyleCard.Render(StyleLabel.Render(label) + "\n" + fmt.Sprintf("%d", value))
}

func renderSLA(app *App) string {
	if app.summary == nil {
		if app.slaError != nil {
			return StyleError.Render("SLA: " + app.slaError.Error())
		}
		return ""
	}
	sum := app.summary.Summary
	var b strings.Builder
	b.WriteString(StyleLabel.Render("SLA") + "  ")
	b.WriteString(StyleTierGood.Render(fmt.Sprintf("good %d", sum.Good)) + "  ")
	b.WriteString(StyleTierWarning.Render(fmt.Sprintf("warning %d", sum.Warning)) + "  ")
	b.WriteString(StyleTierCritical.Render(fmt.Sprintf("critical %d", sum.Critical)) + "  ")
	b.WriteString(StyleTierOverdue.Render(fmt.Sprintf("overdue %d", sum.Overdue)))
	for _, t := range app.summary.MostUrgent {
		b.WriteString("\n" + renderUrgent(t))
	}
	if app.slaError != nil {
		b.WriteString("\n" + StyleError.Render("SLA refresh failed: "+app.slaError.Error()))
	}
	return b.String()
}

func renderUrgent(t dto.TicketResponse) string {
	if t.SLA == nil {
		return StyleDim.Render(fmt.Sprintf("  %-14s %s", t.ExternalKey, t.Title))
	}
	remaining := FormatRemaining(time.Duration(t.SLA.RemainingMs) * time.Millisecond)
	return tierStyle(t.SLA.Tier).Render(fmt.Sprintf("  %-14s %-8s %-9s %s", t.ExternalKey, t.Priority, remaining, t.Title))
}

func tierStyle(t sla.Tier) lipgloss.Style {
	switch t {
	case sla.TierOverdue:
		return StyleTierOverdue
	case sla.TierCritical:
		return StyleTierCritical
	case sla.TierWarning:
		return StyleTierWarning
	default:
		return StyleTierGood
	}
}

func renderFooter(app *App) string {
	var lines []string
	if app.lastError != nil {
		lines = append(lines, StyleError.Render("stats refresh failed: "+app.lastError.Error()))
	}
	if app.connErr != nil && app.connState != realtime.StateOpen {
		lines = append(lines, StyleError.Render("push channel: "+app.connErr.Error()))
	}
	status := "never updated"
	if !app.lastUpdated.IsZero() {
		status = "updated " + app.lastUpdated.Local().Format("15:04:05")
	}
	if app.showHelp {
		status += "  " + helpText
	} else {
		status += "  ?: help"
	}
	lines = append(lines, StyleDim.Render(status))
	return strings.Join(lines, "\n")
}

// FormatRemaining renders a signed SLA countdown such as "3h20m" or "-12m".
func FormatRemaining(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	d = d.Truncate(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h >= 24:
		return fmt.Sprintf("%s%dd%dh", sign, h/24, h%24)
	case h > 0:
		return fmt.Sprintf("%s%dh%02dm", sign, h, m)
	default:
		return fmt.Sprintf("%s%dm", sign, m)
	}
}
