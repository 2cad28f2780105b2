package chat

import (
	"fmt"
	"strings"

	"github.com/atelier-ai/atelier/internal/model"
)

// systemPromptStandard is the base prompt for tool-capable chat models.
const systemPromptStandard = `You are a helpful research assistant.

Rules:
1. Before searching for anything time-sensitive, call get_current_time first and include the real date in your search queries.
2. When document excerpts are provided below, ground your answer in them and cite them with bracketed numbers like [1] that match the excerpt numbering.
3. When you use web search results, cite them the same way using the result numbering.
4. Structure longer answers with short paragraphs or lists. Answer in the user's language.
5. If the available material does not answer the question, say so instead of guessing.`

// systemPromptReasoning is the prompt for models with a reasoning channel.
// The reasoning stream is shown to the user separately, so the final answer
// must stand alone.
const systemPromptReasoning = `You are a careful reasoning assistant.

Think through the problem step by step before answering. Your reasoning is
streamed to the user separately from the answer, so the final answer must be
complete on its own.

Rules:
1. When document excerpts are provided below, ground your answer in them and cite them with bracketed numbers like [1] matching the excerpt numbering.
2. Structure longer answers with short paragraphs or lists. Answer in the user's language.
3. If the available material does not answer the question, say so instead of guessing.`

// SystemPrompt selects the prompt variant for the model's capabilities and
// appends the numbered document excerpt appendix when chunks are present.
func SystemPrompt(cap model.Capability, chunks []DocumentChunk) string {
	base := systemPromptStandard
	if cap.Reasoning {
		base = systemPromptReasoning
	}
	if len(chunks) == 0 {
		return base
	}
	return base + "\n\n" + chunkAppendix(chunks)
}

// chunkAppendix renders chunks as the numbered excerpt list the citation
// markers resolve against.
func chunkAppendix(chunks []DocumentChunk) string {
	var b strings.Builder
	b.WriteString("Document excerpts:\n\n")
	for i, c := range chunks {
		info := c.Metadata.SourceInfo
		if info == "" {
			info = c.Metadata.Source
		}
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, info, c.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
