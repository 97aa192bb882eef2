// Package mock provides a deterministic embedding provider for tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
)

// Provider is an embeddings.Provider test double.
//
// By default each text maps to a bag-of-characters vector: every rune is
// hashed into one of Dim buckets and the result is L2-normalized. Texts that
// share characters are therefore similar, and identical texts have cosine
// similarity 1.
type Provider struct {
	Dim int

	// Err, when set, is returned by every call.
	Err error

	// EmbedDocumentsFunc and EmbedQueryFunc override the default behavior.
	EmbedDocumentsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQueryFunc     func(ctx context.Context, text string) ([]float32, error)

	mu       sync.Mutex
	calls    int
	texts    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	closed   atomic.Bool
}

// New returns a provider producing dim-wide vectors.
func New(dim int) *Provider {
	return &Provider{Dim: dim}
}

func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	defer p.track(texts...)()
	if p.Err != nil {
		return nil, p.Err
	}
	if p.EmbedDocumentsFunc != nil {
		return p.EmbedDocumentsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, p.Dim)
	}
	return out, nil
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	defer p.track(text)()
	if p.Err != nil {
		return nil, p.Err
	}
	if p.EmbedQueryFunc != nil {
		return p.EmbedQueryFunc(ctx, text)
	}
	return Vector(text, p.Dim), nil
}

func (p *Provider) Dimension() int { return p.Dim }

func (p *Provider) Close() error {
	p.closed.Store(true)
	return nil
}

// Calls returns the number of provider calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Texts returns every text embedded so far, in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// MaxConcurrent returns the highest number of overlapping calls observed.
func (p *Provider) MaxConcurrent() int {
	return int(p.maxSeen.Load())
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	return p.closed.Load()
}

func (p *Provider) track(texts ...string) func() {
	p.mu.Lock()
	p.calls++
	p.texts = append(p.texts, texts...)
	p.mu.Unlock()

	n := p.inFlight.Add(1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	return func() { p.inFlight.Add(-1) }
}

// Vector returns the deterministic embedding of text.
func Vector(text string, dim int) []float32 {
	v := make([]float32, dim)
	if dim == 0 {
		return v
	}
	for _, r := range strings.ToLower(text) {
		if r == ' ' {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(r)))
		v[h.Sum32()%uint32(dim)]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		v[0] = 1
		return v
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}
