package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a PDF or text document",
		Long:  "Uploads a PDF or plain text file. The server extracts, chunks and indexes it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(cmd, args[0], outputJSON)
		},
	}
}

func runUpload(cmd *cobra.Command, filePath string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.UploadFile(filePath)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var doc Document
	if err := decodeData(resp, &doc); err != nil {
		return err
	}

	if outputJSON {
		printJSON(doc)
		return nil
	}

	fmt.Println("Uploaded document:")
	printDocumentSummary(doc)
	return nil
}
