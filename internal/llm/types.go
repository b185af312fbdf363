package llm

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Default backend settings, matching a local Ollama install.
const (
	DefaultHost            = "http://localhost:11434"
	DefaultCompletionModel = "gemma3:4b"
	DefaultEmbeddingModel  = "mxbai-embed-large:latest"
	DefaultTemperature     = 0.7
)

// newOpenAIClient creates a client for the OpenAI-compatible API served under host.
// host is the backend root (e.g. "http://localhost:11434"); the /v1 prefix is added here.
func newOpenAIClient(host, apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = apiBaseURL(host)
	return openai.NewClientWithConfig(cfg)
}

func apiBaseURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasSuffix(host, "/v1") {
		return host
	}
	return host + "/v1"
}
