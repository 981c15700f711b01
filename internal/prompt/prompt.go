// Package prompt assembles grounded prompts from conversation history and
// retrieved passages.
package prompt

import (
	"fmt"
	"strings"

	"docchat/internal/domain"
)

const preamble = `You are an experienced teacher and mentor specializing in the loaded documentation. You are deeply familiar with all the content of the documents and can explain them with clarity and depth.

Your role is to:
1. Provide complete and accurate explanations based on the documentation
2. Help the user understand complex concepts with practical examples
3. Offer step-by-step guidance when requested
4. Share well-formatted and commented code examples when relevant
5. Respond in a clear, concise, and friendly manner
6. Never say "I don't know" or "I can't help" - always seek the best possible answer

When sharing code:
- Use markdown code blocks with the language specified
- Comment the code appropriately
- Explain the logic and purpose of the code`

// Assemble renders a single prompt: the instructional preamble, the paired
// conversation history oldest first, the retrieved passages as labeled
// context blocks in retrieval order, the current question, and a trailing
// answer cue.
//
// History must not include the current question. Messages are expected to
// alternate user/assistant starting with user; an unpaired trailing entry is
// skipped so the function stays total.
func Assemble(question string, history []domain.Message, passages []domain.Passage) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nConversation history:\n")

	for i := 0; i+1 < len(history); i += 2 {
		userMsg := history[i]
		assistantMsg := history[i+1]
		if userMsg.Role != domain.RoleUser || assistantMsg.Role != domain.RoleAssistant {
			continue
		}
		fmt.Fprintf(&b, "\nUser: %s\nAssistant: %s\n", userMsg.Text, assistantMsg.Text)
	}

	fmt.Fprintf(&b, "\nUser: %s\n", question)

	b.WriteString("\nHere is relevant information from the documents that may help answer the question:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "Document %d:\n%s\n\n", i+1, p.Text)
	}

	b.WriteString("\nAssistant: ")
	return b.String()
}
