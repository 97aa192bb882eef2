package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTEITimeout = 30 * time.Second

// TEIConfig points at a text-embeddings-inference server. TEI does not
// report the model width, so Dimension must be set.
type TEIConfig struct {
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

func (c TEIConfig) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: tei base URL is empty", ErrInvalidConfig)
	case c.Dimension <= 0:
		return fmt.Errorf("%w: tei dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider posts to the server's /embed route.
type TEIProvider struct {
	endpoint string
	dims     int
	http     *http.Client
}

func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTEITimeout
	}
	return &TEIProvider{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/embed",
		dims:     cfg.Dimension,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// teiRequest.Inputs is a string for a single query and a list for a batch.
type teiRequest struct {
	Inputs   any  `json:"inputs"`
	Truncate bool `json:"truncate"`
}

func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrEmptyInput)
	}
	return p.post(ctx, texts)
}

func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmptyInput)
	}
	out, err := p.post(ctx, text)
	switch {
	case err != nil:
		return nil, err
	case len(out) == 0:
		return nil, fmt.Errorf("%w: tei returned no vectors", ErrEmbeddingFailed)
	}
	return out[0], nil
}

func (p *TEIProvider) post(ctx context.Context, inputs any) ([][]float32, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(teiRequest{Inputs: inputs, Truncate: true}); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: tei status %d: %s", ErrEmbeddingFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding tei response: %v", ErrEmbeddingFailed, err)
	}
	return out, nil
}

func (p *TEIProvider) Dimension() int { return p.dims }

func (p *TEIProvider) Close() error {
	p.http.CloseIdleConnections()
	return nil
}
