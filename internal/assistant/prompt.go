package assistant

import (
	"strings"

	wl "github.com/abadojack/whatlanggo"
)

// BuildPrompt assembles the grounded message sequence for the completion
// provider: a single system message carrying the persona instruction and
// the retrieved context, followed by the conversation's non-system
// messages in their original order.
//
// Pure function: an empty snippet list yields a valid, if unhelpful,
// prompt.
func BuildPrompt(snippets []KnowledgeSnippet, messages []Message) []Message {
	var ctxBlock strings.Builder
	for i, s := range snippets {
		if i > 0 {
			ctxBlock.WriteString("\n\n")
		}
		ctxBlock.WriteString(s.Content)
	}

	var sys strings.Builder
	sys.WriteString("You are Manuela's portfolio assistant, a friendly guide on her personal website. ")
	sys.WriteString("Answer visitor questions about Manuela using ONLY the context below. ")
	sys.WriteString("If the context does not contain the information needed, say you don't have that information. ")
	sys.WriteString("Do not invent facts about Manuela. ")
	sys.WriteString("Reply in ")
	sys.WriteString(replyLanguage(messages))
	sys.WriteString(".\n\nContext:\n")
	sys.WriteString(ctxBlock.String())

	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: sys.String()})
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// replyLanguage picks the answer language from the last user message.
// Unknown or unsupported languages fall back to English.
func replyLanguage(messages []Message) string {
	var question string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			question = messages[i].Content
			break
		}
	}
	if strings.TrimSpace(question) == "" {
		return "English"
	}

	info := wl.Detect(question)
	switch name := info.Lang.String(); name {
	case "Portuguese", "Spanish", "French", "German", "Italian":
		return name
	default:
		return "English"
	}
}
