package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the ask API request.
type AskRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

// Citation is an answer excerpt located in the document.
type Citation struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Page       int     `json:"page"`
	Match      string  `json:"match"`
}

// AnswerMetadata describes how the answer was produced.
type AnswerMetadata struct {
	ChunksFound        int     `json:"chunks_found"`
	MaxRelevance       float64 `json:"max_relevance"`
	CitationsExtracted bool    `json:"citations_extracted"`
	Strategy           string  `json:"strategy"`
	Retrieval          string  `json:"retrieval"`
	Generated          bool    `json:"generated"`
	FallbackReason     string  `json:"fallback_reason,omitempty"`
	Confidence         string  `json:"confidence"`
}

// Answer represents the ask API response.
type Answer struct {
	Answer    string         `json:"answer"`
	Citations []Citation     `json:"citations"`
	Metadata  AnswerMetadata `json:"metadata"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <id> <question>",
		Short: "Ask a question about a document",
		Long:  "Answers a question from the document's content and lists the cited passages.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], strings.Join(args[1:], " "), outputJSON)
		},
	}
}

func runAsk(cmd *cobra.Command, id, question string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/ask", AskRequest{DocumentID: id, Question: question})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var answer Answer
	if err := decodeData(resp, &answer); err != nil {
		return err
	}

	if outputJSON {
		printJSON(answer)
		return nil
	}

	fmt.Print(formatAnswer(answer))
	return nil
}

func formatAnswer(a Answer) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Answer))
	b.WriteString("\n")

	if len(a.Citations) > 0 {
		b.WriteString("\nCitations:\n")
		for i, c := range a.Citations {
			fmt.Fprintf(&b, "  [%d] page %d, chars %d-%d, %s match, score %.2f\n", i+1, c.Page, c.Start, c.End, c.Match, c.Score)
			fmt.Fprintf(&b, "      %q\n", truncate(c.Text, 160))
		}
	}

	fmt.Fprintf(&b, "\nConfidence: %s (retrieval: %s, chunks: %d)\n", a.Metadata.Confidence, a.Metadata.Retrieval, a.Metadata.ChunksFound)
	if a.Metadata.FallbackReason != "" {
		fmt.Fprintf(&b, "Fallback: %s\n", a.Metadata.FallbackReason)
	}
	return b.String()
}
