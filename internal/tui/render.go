package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/project"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
	"github.com/Iron-Ham/fspec/internal/util"
)

const (
	minColumnWidth = 18
	// Lines used by the header, column title, borders, status line and help.
	chromeHeight = 9
	linesPerCard = 2
)

func (m Model) render() string {
	var b strings.Builder

	title := "fspec board"
	if m.board != nil {
		title = fmt.Sprintf("fspec board · %d work %s · %d %s",
			m.board.Total(), util.Plural(m.board.Total(), "unit"), m.board.TagCount, util.Plural(m.board.TagCount, "tag"))
	}
	b.WriteString(styles.Header.Render(title))
	b.WriteString("\n")

	if m.board == nil {
		if m.err != nil {
			b.WriteString(m.renderStatus())
		} else {
			b.WriteString(m.spinner.View() + " loading board...")
		}
		b.WriteString("\n")
		b.WriteString(styles.HelpBar.Render(m.help.View(m.keys)))
		return b.String()
	}

	b.WriteString(m.renderColumns())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(styles.HelpBar.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) columnWidth() int {
	n := len(m.board.Columns)
	if n == 0 || m.width == 0 {
		return minColumnWidth
	}
	// Each column adds two border and two padding cells.
	w := m.width/n - 4
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

func (m Model) maxCards() int {
	if m.height == 0 {
		return 0
	}
	n := (m.height - chromeHeight) / linesPerCard
	if n < 1 {
		return 1
	}
	return n
}

func (m Model) renderColumns() string {
	width := m.columnWidth()
	limit := m.maxCards()

	cols := make([]string, 0, len(m.board.Columns))
	for _, col := range m.board.Columns {
		cols = append(cols, renderColumn(col, m.board.EpicTitles, width, limit))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// renderColumn draws one status lane. A limit of 0 shows every card.
func renderColumn(col project.Column, epics map[string]string, width, limit int) string {
	color := styles.StatusColor(col.Status)
	var b strings.Builder

	heading := fmt.Sprintf("%s %s (%d)", styles.StatusIcon(col.Status), strings.ToUpper(string(col.Status)), len(col.Units))
	b.WriteString(styles.ColumnTitle.Foreground(color).Render(util.Truncate(heading, width)))

	shown := col.Units
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, wu := range shown {
		b.WriteString("\n")
		b.WriteString(renderCard(wu, epics, width))
	}
	if hidden := len(col.Units) - len(shown); hidden > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(fmt.Sprintf("+%d more", hidden)))
	}

	return styles.Column.BorderForeground(color).Width(width).Render(b.String())
}

func renderCard(wu *project.WorkUnit, epics map[string]string, width int) string {
	line := styles.CardID.Render(wu.ID) + " " + util.Truncate(wu.Title, width-len(wu.ID)-1)

	var detail string
	switch {
	case wu.Status == project.StatusBlocked && wu.BlockedReason != "":
		detail = styles.Error.Render(util.Truncate(wu.BlockedReason, width))
	case wu.Epic != "":
		title := epics[wu.Epic]
		if title == "" {
			title = wu.Epic
		}
		detail = styles.CardEpic.Render(util.Truncate(title, width))
	}
	if detail == "" {
		return line
	}
	return line + "\n" + detail
}

func (m Model) renderStatus() string {
	if m.err != nil {
		msg := "load failed: " + m.err.Error()
		if hint := ferrors.Hint(m.err); hint != "" {
			msg += " (" + hint + ")"
		}
		return styles.ErrorMsg.Render(msg)
	}

	parts := []string{"updated " + humanize.Time(m.board.LoadedAt)}
	if len(m.lastChange) > 0 {
		parts = append(parts, fmt.Sprintf("%d %s changed", len(m.lastChange), util.Plural(len(m.lastChange), "file")))
	}
	status := strings.Join(parts, " · ")
	if m.loading {
		status = m.spinner.View() + " " + status
	}
	return styles.Muted.Render(status)
}
