package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DocumentMetadata mirrors the server's document statistics.
type DocumentMetadata struct {
	PageCount  int `json:"page_count"`
	WordCount  int `json:"word_count"`
	ChunkCount int `json:"chunk_count"`
}

// Chunk is one retrieval unit of a document.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
}

// Document is the API representation of an ingested document.
type Document struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"content_type"`
	Metadata    DocumentMetadata `json:"metadata"`
	HasFile     bool             `json:"has_file"`
	UploadedAt  string           `json:"uploaded_at"`
	Text        string           `json:"text,omitempty"`
	Chunks      []Chunk          `json:"chunks,omitempty"`
}

// DocumentList is one page of documents.
type DocumentList struct {
	Items   []Document `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

func decodeData(resp *APIResponse, target interface{}) error {
	if err := json.Unmarshal(resp.Data, target); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func printJSON(v interface{}) {
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(os.Stdout, string(output))
}

func printDocumentSummary(d Document) {
	fmt.Printf("%s\n", d.Filename)
	fmt.Printf("   ID: %s\n", d.ID)
	fmt.Printf("   Type: %s\n", d.ContentType)
	fmt.Printf("   Pages: %d, Words: %d, Chunks: %d\n", d.Metadata.PageCount, d.Metadata.WordCount, d.Metadata.ChunkCount)
	if d.UploadedAt != "" {
		fmt.Printf("   Uploaded: %s\n", d.UploadedAt)
	}
	if d.HasFile {
		fmt.Println("   Original file: stored")
	}
}

// truncate shortens s to at most n runes for terminal output.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
