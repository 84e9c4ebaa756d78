package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Long:  "Lists uploaded documents, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func listPath(limit int, cursor string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if len(q) == 0 {
		return "/documents"
	}
	return "/documents?" + q.Encode()
}

func runList(cmd *cobra.Command, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(listPath(limit, cursor))
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var list DocumentList
	if err := decodeData(resp, &list); err != nil {
		return err
	}

	if outputJSON {
		printJSON(list)
		return nil
	}

	if len(list.Items) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	fmt.Printf("Found %d documents:\n\n", len(list.Items))
	for i, doc := range list.Items {
		fmt.Printf("%d. ", i+1)
		printDocumentSummary(doc)
		if i < len(list.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	if list.HasMore && list.Cursor != "" {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Printf("More results available. Use --cursor %s\n", list.Cursor)
	}

	return nil
}
