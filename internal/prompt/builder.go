// Package prompt assembles the text prompts sent to the reply and
// summarization models.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vocata-labs/vocata-core/internal/persona"
	"github.com/vocata-labs/vocata-core/internal/rag"
	"github.com/vocata-labs/vocata-core/internal/session"
)

// ReplyInput carries everything the reply prompt template needs.
type ReplyInput struct {
	Message   string
	Topic     string
	Summary   string
	Log       []session.LogEntry
	Character persona.Character
	Script    persona.Script
	Language  string
	Passages  []rag.Passage
	Custom    string
}

func languageDirective(language string) string {
	if strings.EqualFold(language, "CHN") {
		return "Chinese."
	}
	return "English."
}

func formatLog(entries []session.LogEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPassages(passages []rag.Passage) string {
	var lines []string
	for _, p := range passages {
		if p.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%.2f] %s", p.Score, p.Text))
	}
	return strings.Join(lines, "\n")
}

const replyInstructions = `Respond naturally and conversationally in spoken %s
Keep your responses concise and appropriate for voice conversation.
Do NOT use parentheses, square brackets, asterisks, curly braces, or other
formatting characters. Write only plain, readable text that can be spoken
naturally, punctuated with commas, periods, and question marks.`

// Reply builds the prompt for the conversational reply model. A custom
// prompt starting with "OVERRIDE:" replaces the whole template; any other
// non-empty custom prompt is appended as extra instructions.
func Reply(in ReplyInput) string {
	directive := languageDirective(in.Language)

	custom := strings.TrimSpace(in.Custom)
	if rest, ok := strings.CutPrefix(custom, "OVERRIDE:"); ok {
		return fmt.Sprintf("%s\n\nUser's Message: %s\nAssistant_Response:", strings.TrimSpace(rest), in.Message)
	}

	identity := fmt.Sprintf("%s, %s (the assistant is a human, not an AI)", in.Character.Name, in.Character.Identity)

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation Setting for User: %s\n", in.Script.Description)
	fmt.Fprintf(&b, "Assistant(You)'s Identity: %s\n", identity)
	fmt.Fprintf(&b, "Assistant(You)'s Role: %s\n", in.Script.AssistantRole)
	fmt.Fprintf(&b, "Assistant(You)'s Goal: %s\n", in.Script.AssistantGoal)
	fmt.Fprintf(&b, "Assistant(You)'s Background: %s\n", formatPassages(in.Passages))
	fmt.Fprintf(&b, "Recent Conversations: %s\n", formatLog(in.Log))
	fmt.Fprintf(&b, "Past Key Info: %s\n", in.Summary)
	fmt.Fprintf(&b, "Suggested Topic: %s\n", in.Topic)
	fmt.Fprintf(&b, "User's Role: %s\n", in.Script.UserRole)
	fmt.Fprintf(&b, "User's Message: %s\n\n", in.Message)
	fmt.Fprintf(&b, "IMPORTANT: You must respond in %s only.\n\n", strings.TrimSuffix(directive, "."))
	if custom != "" {
		fmt.Fprintf(&b, "Custom Instructions: %s\n\n", custom)
	}
	fmt.Fprintf(&b, "Instructions: "+replyInstructions+"\n", directive)
	b.WriteString("Assistant_Response:")
	return b.String()
}

// Fallback is the minimal prompt used when building the full template
// fails, for example when persona data cannot be resolved.
func Fallback(message, language string) string {
	return fmt.Sprintf("Respond naturally and conversationally in spoken %s Keep it concise.\n\nUser's Message: %s\nAssistant_Response:", languageDirective(language), message)
}

// Summarize builds the prompt for the background summarization call. The
// model is asked for a strict JSON object with summary and next_topic keys.
func Summarize(previousSummary string, entries []session.LogEntry) string {
	return fmt.Sprintf(`You are a helpful assistant reasoning about ongoing conversations.

Given:
- History: %s
- New Logs:
%s

Instructions:
1. Summarize the conversation between the user and the assistant so far.
2. Identify their roles clearly and include any key names, numbers, and events.
3. Suggest an interesting next long-term topic of conversation.

Return the result as a valid JSON object only, with no explanation, extra
text, or Markdown formatting, in this shape:
{
  "summary": "...",
  "next_topic": "..."
}`, previousSummary, formatLog(entries))
}
