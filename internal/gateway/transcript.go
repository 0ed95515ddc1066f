// ABOUTME: Read-only HTML transcript view of a conversation.
// ABOUTME: Assistant markdown rendered with goldmark; system entries hidden.

package gateway

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/parley-gateway/internal/history"
	"github.com/2389/parley-gateway/internal/session"
)

const transcriptHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Transcript: {{.Conversation}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.msg { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 0.5rem; }
.msg.user { background: #eef2ff; }
.msg.assistant { background: #f4f4f5; }
.role { display: block; font-size: 0.75rem; text-transform: uppercase; color: #666; margin-bottom: 0.25rem; }
</style>
</head>
<body>
<h1>{{.Conversation}}</h1>
{{range .Entries}}<div class="msg {{.Role}}">
<span class="role">{{.Role}}</span>
{{if .HTML}}<div class="content">{{.HTML}}</div>{{else}}<p class="content">{{.Text}}</p>{{end}}
</div>
{{end}}</body>
</html>
`

var transcriptTmpl = template.Must(template.New("transcript").Parse(transcriptHTML))

// transcriptEntry is one rendered message. Exactly one of HTML and Text
// is set: HTML for markdown-rendered assistant turns, Text for
// escaped user turns.
type transcriptEntry struct {
	Role string
	HTML template.HTML
	Text string
}

// handleTranscript handles GET /api/conversations/{key}/transcript.
// System-role entries stay in history but are filtered from display.
func (g *Gateway) handleTranscript(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	snapshot := actor.History()

	entries := make([]transcriptEntry, 0, len(snapshot))
	for _, msg := range snapshot {
		switch msg.Role {
		case history.RoleSystem:
			continue
		case history.RoleAssistant:
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(msg.Content), &buf); err != nil {
				g.logger.Error("failed to render markdown",
					"conversation", actor.Key,
					"error", err)
				entries = append(entries, transcriptEntry{Role: string(msg.Role), Text: msg.Content})
				continue
			}
			entries = append(entries, transcriptEntry{
				Role: string(msg.Role),
				HTML: template.HTML(buf.String()),
			})
		default:
			entries = append(entries, transcriptEntry{Role: string(msg.Role), Text: msg.Content})
		}
	}

	data := struct {
		Conversation string
		Entries      []transcriptEntry
	}{
		Conversation: actor.Key,
		Entries:      entries,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := transcriptTmpl.Execute(w, data); err != nil {
		g.logger.Error("failed to render transcript",
			"conversation", actor.Key,
			"error", err)
	}
}
