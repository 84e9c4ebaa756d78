package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Similarity float64 `json:"similarity"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <id> <query>",
		Short: "Similarity search within a document",
		Long:  "Ranks a document's chunks against the query by vector similarity.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], strings.Join(args[1:], " "), topK, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to return")

	return cmd
}

func runSearch(cmd *cobra.Command, id, query string, topK int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/documents/"+url.PathEscape(id)+"/search", SearchRequest{Query: query, TopK: topK})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var result SearchResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		printJSON(result)
		return nil
	}

	if len(result.Results) == 0 {
		fmt.Println("No matching chunks found.")
		return nil
	}

	for i, r := range result.Results {
		fmt.Printf("%d. Chunk %d (%.1f%%) [%d-%d]\n", i+1, r.ChunkIndex, r.Similarity*100, r.Start, r.End)
		fmt.Printf("   %s\n", truncate(r.Text, 200))
	}
	return nil
}
