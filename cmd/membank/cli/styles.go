package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/membank/internal/memory"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7D56F4")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575"))

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262"))

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000"))
)

func field(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
}

func renderPayload(p memory.Payload) string {
	if s, ok := p.AsString(); ok {
		return s
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", p.Value())
	}
	return string(raw)
}

func renderObject(w io.Writer, obj memory.Object) {
	md := obj.Metadata
	fmt.Fprintln(w, titleStyle.Render(md.Category+" / "+md.Key))
	field(w, "timestamp", md.Timestamp)
	field(w, "source", md.Source)
	field(w, "tags", strings.Join(md.Tags, ", "))
	if md.TTL != nil {
		field(w, "ttl", fmt.Sprintf("%g days", *md.TTL))
	}
	if md.Importance != nil {
		field(w, "importance", fmt.Sprintf("%g", *md.Importance))
	}
	if md.Vectorized != nil {
		field(w, "vectorized", fmt.Sprintf("%t", *md.Vectorized))
	}
	fmt.Fprintln(w, renderPayload(obj.Data))
}

// preview shortens a payload to one line.
func preview(p memory.Payload, width int) string {
	s := renderPayload(p)
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > width {
		return s[:width-3] + "..."
	}
	return s
}
