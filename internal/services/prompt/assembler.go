package prompt

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// DefaultSystemPrompt is the base persona used when neither configuration
// nor the request supplies one.
const DefaultSystemPrompt = "You are a helpful assistant."

// fallbackAnswer is the exact phrase the model is instructed to produce
// when the context cannot answer the query. Downstream relevance gating
// matches against it, so the wording here and there must stay in sync.
const fallbackAnswer = "I don't know based on the documents provided."

// Assembler builds the ordered message list for a generation request:
// one system message carrying the grounding rules and retrieved context,
// the trailing conversation history, then the user query.
type Assembler struct {
	historyLimit int
	systemPrompt string
	logger       arbor.ILogger
}

// NewAssembler creates a prompt assembler. historyLimit bounds how many
// trailing history messages are included; systemPrompt is the default
// persona, overridable per request through settings.
func NewAssembler(historyLimit int, systemPrompt string, logger arbor.ILogger) *Assembler {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Assembler{
		historyLimit: historyLimit,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Assemble produces the provider-agnostic message list for query. The
// system message always carries the grounding rules and the fallback
// instruction, even when retrieval came back empty, so the model never
// answers from its own knowledge.
func (a *Assembler) Assemble(query string, rctx *models.RetrievedContext, history []models.ChatMessage, settings models.Settings) []interfaces.Message {
	persona := settings.SystemPrompt
	if persona == "" {
		persona = a.systemPrompt
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString("CRITICAL RAG RULES:\n")
	sb.WriteString("1. ONLY use the provided <CONTEXT> to answer. ")
	sb.WriteString(fmt.Sprintf("If the answer is not in the context, say: %q\n", fallbackAnswer))
	sb.WriteString("2. AT THE VERY END of your response, you MUST provide exactly two metadata lines:\n")
	sb.WriteString("SOURCE_RELEVANT: [True if the context was used to answer the query, False if not]\n")
	sb.WriteString("FOLLOWUP: [\"Question 1?\", \"Question 2?\", \"Question 3?\"]\n\n")
	sb.WriteString("<CONTEXT>\n")
	sb.WriteString(renderContext(rctx))
	sb.WriteString("\n</CONTEXT>")

	messages := make([]interfaces.Message, 0, a.historyLimit+2)
	messages = append(messages, interfaces.Message{Role: "system", Content: sb.String()})

	trailing := history
	if len(trailing) > a.historyLimit {
		trailing = trailing[len(trailing)-a.historyLimit:]
	}
	for _, msg := range trailing {
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, interfaces.Message{Role: role, Content: msg.Content})
	}

	messages = append(messages, interfaces.Message{Role: "user", Content: query})

	a.logger.Debug().
		Int("context_chunks", chunkCount(rctx)).
		Int("history_messages", len(trailing)).
		Msg("Prompt assembled")

	return messages
}

// FallbackAnswer returns the instructed no-answer phrase so relevance
// gating can match against it.
func FallbackAnswer() string {
	return fallbackAnswer
}

func renderContext(rctx *models.RetrievedContext) string {
	if rctx == nil || len(rctx.Chunks) == 0 {
		return "No relevant documents found."
	}

	blocks := make([]string, 0, len(rctx.Chunks))
	for _, chunk := range rctx.Chunks {
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", chunk.Source, chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func chunkCount(rctx *models.RetrievedContext) int {
	if rctx == nil {
		return 0
	}
	return len(rctx.Chunks)
}
