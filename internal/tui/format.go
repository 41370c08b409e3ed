package tui

import (
	"fmt"
	"strings"

	"chat-relay/internal/client"
	"chat-relay/internal/models"

	"github.com/rivo/tview"
)

const everyoneLabel = "Everyone"

// contact is one selectable row in the contacts list.
type contact struct {
	ID    string
	Label string
}

// contacts lists the broadcast channel first, then every peer but self.
func contacts(sessions []models.Session, selfID string) []contact {
	out := []contact{{ID: models.BroadcastTarget, Label: everyoneLabel}}
	for _, s := range sessions {
		if s.ID == selfID {
			continue
		}
		out = append(out, contact{
			ID:    s.ID,
			Label: fmt.Sprintf("%s %s", statusGlyph(s.Status), tview.Escape(s.Name)),
		})
	}
	return out
}

func statusGlyph(st models.Status) string {
	switch st {
	case models.StatusOnline:
		return "[green]●[-]"
	case models.StatusAway:
		return "[yellow]◐[-]"
	default:
		return "[gray]○[-]"
	}
}

// formatConversation renders msgs for the conversation TextView. Relative
// upload links are resolved against baseURL.
func formatConversation(msgs []models.Message, selfID, baseURL string) string {
	var b strings.Builder
	for _, m := range msgs {
		r := client.Render(m)
		colour := "aqua"
		if m.From == selfID {
			colour = "lime"
		}
		fmt.Fprintf(&b, "[%s]%s[-] [gray]%s[-]", colour, tview.Escape(r.Sender), m.Timestamp)
		if m.From == selfID && m.Read {
			b.WriteString(" [blue]✓✓[-]")
		}
		b.WriteString("\n")

		body := r.Body
		if r.Link != "" && strings.HasPrefix(r.Link, "/") {
			body = strings.Replace(body, r.Link, strings.TrimRight(baseURL, "/")+r.Link, 1)
		}
		for _, line := range strings.Split(body, "\n") {
			b.WriteString("  " + tview.Escape(line) + "\n")
		}
	}
	return b.String()
}

func formatTyping(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return tview.Escape(names[0]) + " is typing..."
	default:
		return tview.Escape(strings.Join(names, ", ")) + " are typing..."
	}
}

func formatNotes(notes []client.Note) string {
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		parts = append(parts, fmt.Sprintf("[yellow]%s:[-] %s", tview.Escape(n.From), tview.Escape(n.Message)))
	}
	return strings.Join(parts, "  ")
}

type commandKind int

const (
	cmdText commandKind = iota
	cmdFile
	cmdLocation
	cmdQuit
	cmdUnknown
)

type command struct {
	kind commandKind
	arg  string
}

// parseCommand interprets one line of input. Lines starting with "//" send
// a literal slash.
func parseCommand(line string) command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdText, arg: line}
	}
	if strings.HasPrefix(trimmed, "//") {
		return command{kind: cmdText, arg: trimmed[1:]}
	}
	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/file":
		if arg == "" {
			return command{kind: cmdUnknown, arg: "usage: /file <path>"}
		}
		return command{kind: cmdFile, arg: arg}
	case "/loc":
		return command{kind: cmdLocation}
	case "/quit":
		return command{kind: cmdQuit}
	}
	return command{kind: cmdUnknown, arg: "unknown command " + name}
}
