package client

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	var (
		showText   bool
		showChunks bool
		download   string
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document",
		Long:  "Shows document metadata, optionally with its text and chunks, or downloads the original file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if download != "" {
				return runDownload(cmd, args[0], download)
			}
			return runGet(cmd, args[0], showText, showChunks, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&showText, "text", false, "Print the extracted text")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "Print chunk offsets and previews")
	cmd.Flags().StringVarP(&download, "download", "d", "", "Save the original file to this path")

	return cmd
}

func runGet(cmd *cobra.Command, id string, showText, showChunks, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/documents/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var doc Document
	if err := decodeData(resp, &doc); err != nil {
		return err
	}

	if outputJSON {
		printJSON(doc)
		return nil
	}

	printDocumentSummary(doc)
	if showChunks {
		fmt.Println("\nChunks:")
		for _, c := range doc.Chunks {
			fmt.Printf("  [%d] %d-%d (%s) %s\n", c.Index, c.Start, c.End, c.Type, truncate(c.Text, 80))
		}
	}
	if showText {
		fmt.Println()
		fmt.Println(doc.Text)
	}
	return nil
}

func runDownload(cmd *cobra.Command, id, outputPath string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	err = api.DownloadDocumentFile(id, outputPath, func(current, total int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\rDownloading... %d%%", current*100/total)
		}
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Printf("Saved to %s\n", outputPath)
	return nil
}
