package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/aurorahq/aurora/internal/chat"
	"github.com/aurorahq/aurora/internal/llm"
	"github.com/aurorahq/aurora/internal/memory"
)

// retrievedContextHeader opens the synthetic long-term memory segment.
const retrievedContextHeader = "Relevant past context (use only if helpful):"

// BuildContext assembles the transient context window for one completion
// call: zero-or-one synthetic retrieved-context segment followed by the
// chronological recent-message window. The inbound user message is already
// part of recent, having been persisted before the history read.
//
// The completion API requires the first message to carry the user role. A
// sliding window over an alternating conversation can start on an assistant
// turn, so leading assistant messages are dropped unless a retrieved-context
// segment already opens the list.
//
// Pure and deterministic: identical inputs always yield identical output.
// Snippets are concatenated in the order given (similarity rank, closest
// first); an empty snippet list omits the synthetic segment entirely.
func BuildContext(recent []chat.Message, snippets []memory.Snippet) []llm.Segment {
	segments := make([]llm.Segment, 0, len(recent)+1)

	if len(snippets) > 0 {
		var b strings.Builder
		b.WriteString(retrievedContextHeader)
		b.WriteString("\n")
		for _, s := range snippets {
			b.WriteString("\n• ")
			b.WriteString(s.Text)
		}
		segments = append(segments, llm.Segment{Role: chat.RoleUser, Text: b.String()})
	}

	for _, msg := range recent {
		if len(segments) == 0 && msg.Role != chat.RoleUser {
			continue
		}
		segments = append(segments, llm.Segment{Role: msg.Role, Text: msg.Content})
	}
	return segments
}

// chronological returns the newest-first window from the log in oldest-first
// order, without mutating the input.
func chronological(newestFirst []chat.Message) []chat.Message {
	out := make([]chat.Message, len(newestFirst))
	for i, msg := range newestFirst {
		out[len(newestFirst)-1-i] = msg
	}
	return out
}

// titleLimit is the maximum rune length of a derived conversation title.
const titleLimit = 50

// DeriveTitle produces a conversation title from the first user message: the
// trimmed text truncated to titleLimit runes with an ellipsis marker, falling
// back to the default placeholder for blank input.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.DefaultTitle
	}
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleLimit]) + "…"
}
