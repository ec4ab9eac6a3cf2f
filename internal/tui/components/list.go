package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// ListItem is one selectable row.
type ListItem struct {
	ID     string
	Label  string
	Badge  string // e.g. "recommended"
	Hint   string // dim text after the label
	Detail string // shown under the list while selected
}

// ListModel is a cursor-driven list used for menus, question options and
// the epic browser. Selection is read by the caller; the list only moves
// the cursor.
type ListModel struct {
	items      []ListItem
	cursor     int
	scrollOff  int
	showDetail bool
	width      int
	height     int
}

var (
	selectedPrefix = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")).Bold(true)
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	detailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).PaddingLeft(4)
)

func NewListModel(items []ListItem) ListModel {
	return ListModel{items: items, showDetail: true}
}

// SetItems replaces the rows, keeping the cursor in range.
func (m *ListModel) SetItems(items []ListItem) {
	m.items = items
	m.cursor = max(min(m.cursor, len(items)-1), 0)
	m.ensureVisible()
}

func (m *ListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.ensureVisible()
}

// SetShowDetail toggles the detail text of the selected row.
func (m *ListModel) SetShowDetail(show bool) {
	m.showDetail = show
}

func (m ListModel) Len() int { return len(m.items) }

func (m ListModel) Cursor() int { return m.cursor }

// SetCursor moves to index i, clamped.
func (m *ListModel) SetCursor(i int) {
	m.cursor = max(min(i, len(m.items)-1), 0)
	m.ensureVisible()
}

// Selected returns the highlighted row.
func (m ListModel) Selected() (ListItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return ListItem{}, false
	}
	return m.items[m.cursor], true
}

// Update moves the cursor on up/down/j/k/home/end.
func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "home":
			m.cursor = 0
		case "end":
			m.cursor = max(len(m.items)-1, 0)
		}
		m.ensureVisible()
	}
	return m, nil
}

func (m ListModel) listHeight() int {
	if m.height <= 0 {
		return len(m.items)
	}
	h := m.height
	if m.showDetail {
		h -= m.height * 30 / 100
	}
	return max(h, 1)
}

func (m *ListModel) ensureVisible() {
	h := m.listHeight()
	if m.cursor < m.scrollOff {
		m.scrollOff = m.cursor
	}
	if m.cursor >= m.scrollOff+h {
		m.scrollOff = m.cursor - h + 1
	}
	m.scrollOff = max(m.scrollOff, 0)
}

func (m ListModel) View() string {
	if len(m.items) == 0 {
		return dimStyle.Render("  (empty)")
	}

	end := min(m.scrollOff+m.listHeight(), len(m.items))
	lines := make([]string, 0, end-m.scrollOff)
	for i := m.scrollOff; i < end; i++ {
		lines = append(lines, m.renderItem(i))
	}
	view := strings.Join(lines, "\n")

	if !m.showDetail {
		return view
	}
	if item, ok := m.Selected(); ok && item.Detail != "" {
		detail := item.Detail
		if m.width > 8 {
			detail = wordwrap.String(detail, m.width-6)
		}
		view += "\n\n" + detailStyle.Render(detail)
	}
	return view
}

func (m ListModel) renderItem(i int) string {
	item := m.items[i]
	prefix, style := "  ", normalStyle
	if i == m.cursor {
		prefix, style = selectedPrefix.Render("→ "), selectedStyle
	}

	line := prefix + style.Render(item.Label)
	if item.Badge != "" {
		line += " " + badgeStyle.Render("["+item.Badge+"]")
	}
	if item.Hint != "" {
		line += "  " + dimStyle.Render(item.Hint)
	}
	if m.width > 1 && lipgloss.Width(line) > m.width {
		line = truncate.StringWithTail(line, uint(m.width), "…")
	}
	return line
}
