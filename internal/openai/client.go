package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/citedoc/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultChatModel is the OpenAI model used for answer generation
	DefaultChatModel = openai.GPT4oMini
	// DefaultEmbeddingDimensions matches the fixed index dimension
	DefaultEmbeddingDimensions = domain.EmbeddingDimensions

	defaultTemperature = 0.2
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = fmt.Errorf("embedding has wrong dimensions, expected %d", DefaultEmbeddingDimensions)
	// ErrEmptyCompletion is returned when the model returns no content
	ErrEmptyCompletion = errors.New("completion returned no content")
)

// API defines the subset of the OpenAI API the client relies on
type API interface {
	CreateEmbeddings(ctx context.Context, text string, dimensions int) ([]float32, error)
	CreateCompletion(ctx context.Context, prompt string) (string, error)
}

// Client generates embeddings and answers through an OpenAI-compatible API
type Client struct {
	api        API
	dimensions int
}

// OpenAIAdapter adapts go-openai to API
type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

// NewOpenAIAdapter creates an adapter. An empty baseURL targets api.openai.com.
func NewOpenAIAdapter(apiKey, baseURL string, embeddingModel openai.EmbeddingModel, chatModel string) *OpenAIAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string, dimensions int) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.embeddingModel,
		Dimensions: dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateCompletion sends prompt as a single user message
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// Config holds configuration for Client
type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	ChatModel           string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, openai.EmbeddingModel(cfg.EmbeddingModel), cfg.ChatModel),
		dimensions: dimensions,
	}
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text, c.dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// Generate returns the model's answer to prompt
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	content, err := c.api.CreateCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}

	return content, nil
}
