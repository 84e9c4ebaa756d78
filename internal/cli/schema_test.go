package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "citedoc"}
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	AddHelpJSONFlag(root)

	ask := &cobra.Command{Use: "ask <id> <question>", Short: "Ask a question", Run: func(*cobra.Command, []string) {}}
	search := &cobra.Command{Use: "search <id> <query>", Run: func(*cobra.Command, []string) {}}
	search.Flags().IntP("top-k", "k", 5, "Number of chunks")
	search.Flags().String("mode", "", "Ranking mode")
	_ = search.MarkFlagRequired("mode")
	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	root.AddCommand(ask, search, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	root := testTree()
	schema := GenerateSchema(root)

	require.Len(t, schema.Subcommands, 2)
	ask := schema.Subcommands[0]
	assert.Equal(t, "ask", ask.Name)
	assert.Equal(t, []string{"id", "question"}, ask.Args)
	assert.Equal(t, "Ask a question", ask.Description)

	require.Len(t, ask.Flags, 1)
	assert.Equal(t, "output", ask.Flags[0].Name)
	assert.True(t, ask.Flags[0].Inherited)
}

func TestGenerateSchema_RequiredFlags(t *testing.T) {
	search := GenerateSchema(testTree()).Subcommands[1]

	byName := map[string]FlagSchema{}
	for _, f := range search.Flags {
		byName[f.Name] = f
	}
	assert.True(t, byName["mode"].Required)
	assert.False(t, byName["top-k"].Required)
	assert.Equal(t, "k", byName["top-k"].Shorthand)
	assert.Equal(t, "5", byName["top-k"].Default)
	assert.NotContains(t, byName, "help-json")
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testTree()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "citedoc", decoded.Name)
}

func TestFindTargetCommand(t *testing.T) {
	root := testTree()
	assert.Equal(t, "search", findTargetCommand(root, []string{"search"}).Name())
	assert.Equal(t, "citedoc", findTargetCommand(root, []string{"unknown"}).Name())
	assert.Equal(t, "citedoc", findTargetCommand(root, nil).Name())
}
