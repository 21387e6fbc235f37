package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"

	"github.com/cloudwego/eino/components/embedding"
)

const (
	defaultAliyunModel   = "text-embedding-v3"
	defaultAliyunBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	// DashScope accepts at most this many inputs per request.
	aliyunBatchSize = 10
)

// AliyunEmbedder calls the OpenAI-compatible DashScope embeddings endpoint.
type AliyunEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
}

var _ embedding.Embedder = (*AliyunEmbedder)(nil)

// NewAliyunEmbedder builds the remote embedder from cfg.
func NewAliyunEmbedder(cfg config.EmbeddingConfig) (*AliyunEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("aliyun embedder: api key is empty")
	}
	model := cfg.Model
	if model == "" {
		model = defaultAliyunModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAliyunBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AliyunEmbedder{
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the configured model name.
func (a *AliyunEmbedder) Model() string { return a.model }

type aliyunRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type aliyunResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *aliyunError `json:"error,omitempty"`
}

type aliyunError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// EmbedStrings implements embedding.Embedder, splitting texts into batches.
func (a *AliyunEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := embedding.GetCommonOptions(&embedding.Options{}, opts...)
	model := a.model
	if options.Model != nil && *options.Model != "" {
		model = *options.Model
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += aliyunBatchSize {
		end := start + aliyunBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := a.embedBatch(ctx, model, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (a *AliyunEmbedder) embedBatch(ctx context.Context, model string, batch []string) ([][]float64, error) {
	body, err := json.Marshal(aliyunRequest{Input: batch, Model: model, Dimensions: a.dimensions, EncodingFormat: "float"})
	if err != nil {
		return nil, fmt.Errorf("aliyun embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("aliyun embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aliyun embedder: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("aliyun embedder: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var wrapped struct {
			Error aliyunError `json:"error"`
		}
		if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error.Message != "" {
			return nil, fmt.Errorf("aliyun embedder: status %d: %s (%s)", resp.StatusCode, wrapped.Error.Message, wrapped.Error.Code)
		}
		return nil, fmt.Errorf("aliyun embedder: status %d: %.200s", resp.StatusCode, string(raw))
	}

	var parsed aliyunResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("aliyun embedder: decode response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("aliyun embedder: api error %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("aliyun embedder: got %d vectors for %d inputs", len(parsed.Data), len(batch))
	}

	vecs := make([][]float64, len(batch))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("aliyun embedder: vector index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	logger.Debug().
		Str("model", model).
		Int("inputs", len(batch)).
		Int("total_tokens", parsed.Usage.TotalTokens).
		Msg("aliyun embeddings received")
	return vecs, nil
}
