package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// NotFoundAnswer is returned without calling the generator when retrieval finds nothing.
	NotFoundAnswer = "**Confidence Level: Low**\n\n" +
		"**Answer:**\nI couldn't find relevant information in the document to answer your question. " +
		"The document may not contain the specific information you're looking for.\n\n" +
		"**Source Reference:**\nNo relevant sections found in the document.\n\n" +
		"**Suggestion:**\nTry rephrasing your question or asking about topics that are more clearly covered in the document."

	fallbackSnippetChars = 200
)

const promptTemplate = `You are a document analysis assistant. Answer the question using ONLY the document context below.

DOCUMENT: %q

DOCUMENT CONTEXT:
%s

QUESTION: %s

INSTRUCTIONS:
1. Only state facts that are explicitly present in the context. Never add outside knowledge.
2. Format the answer in markdown. Use **bold** for emphasis and bullet points for lists.
3. Start with "**Confidence Level: High**", "**Confidence Level: Medium**" or "**Confidence Level: Low**".
4. If the context does not contain the answer, state: "This information is not mentioned in the document."
5. At the END of the answer, list the exact excerpts you relied on using this format:

---
CITATIONS:
[CITE]exact text from the document[/CITE]
[CITE]another exact text from the document[/CITE]

6. Each excerpt must be copied word-for-word from the context and be at least 20 characters long.
7. Only cite the parts you actually used.

ANSWER:`

// BuildContextBlock renders retrieved chunks as numbered sections.
func BuildContextBlock(chunks []ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Section %d] %s\n", i+1, c.Chunk.Text)
	}
	return b.String()
}

// BuildPrompt returns the generation prompt including the citation protocol.
func BuildPrompt(question, filename, contextBlock string) string {
	return fmt.Sprintf(promptTemplate, filename, contextBlock, strings.TrimSpace(question))
}

// FallbackAnswer synthesizes a structured answer directly from retrieved
// chunks when generation is unavailable or fails.
func FallbackAnswer(filename string, chunks []ScoredChunk) string {
	var b strings.Builder
	b.WriteString("**Confidence Level: Medium**\n\n")
	b.WriteString("**Answer:**\nBased on the document analysis, here are the relevant findings:\n\n")
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, snippet(c.Chunk.Text, fallbackSnippetChars))
	}
	fmt.Fprintf(&b, "\n\n**Source Reference:**\nInformation extracted from %d relevant section(s) of the document: %q\n\n", len(chunks), filename)
	b.WriteString("**Similarity Scores:**\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "- Section %d: %.1f%% relevance\n", i+1, c.Similarity*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return truncateRunes(text, n) + "..."
}
