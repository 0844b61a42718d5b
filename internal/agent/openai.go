package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Supported backend providers.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// OpenAIConfig configures an OpenAIBackend.
type OpenAIConfig struct {
	Provider   string // ProviderAzure or ProviderOpenAI
	Endpoint   string // Azure resource URL, or base URL of an OpenAI-compatible server
	APIKey     string
	Deployment string // Azure deployment name, or model name
	APIVersion string // Azure API version
	HTTPClient *http.Client
}

// OpenAIBackend completes prompts through the chat completions API.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds a backend for Azure OpenAI or an OpenAI-compatible endpoint.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation api key not set")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("generation deployment not set")
	}

	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case ProviderAzure, "":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("generation endpoint not set")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, strings.TrimRight(cfg.Endpoint, "/"))
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Deployment
		clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
	case ProviderOpenAI:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
		}
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Deployment,
	}, nil
}

// Complete sends one user message and returns choices[0].message.content.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &ContractError{Reason: "no choices returned"}
	}
	// The client decodes a null content as "". Both carry nothing to extract.
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &ContractError{Reason: "content is null or empty"}
	}
	return content, nil
}

// classifyOpenAIError maps client errors onto the transport/contract taxonomy.
func classifyOpenAIError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ContractError{Reason: "undecodable response body", Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Err: err}
}
