package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Echo is an offline Client. It answers with the last user message, which is
// enough to exercise workflows without credentials.
type Echo struct{}

// Chat implements Client.
func (Echo) Chat(_ context.Context, req ChatRequest) (string, error) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Content, nil
		}
	}
	return "", ErrEmptyResponse
}

// Placeholder is an offline ImageGenerator returning a placeholder URL.
type Placeholder struct{}

// GenerateImage implements ImageGenerator.
func (Placeholder) GenerateImage(_ context.Context, req ImageRequest) (*Image, error) {
	size := req.Size
	if size == "" {
		size = "512x512"
	}
	return &Image{
		URL:      fmt.Sprintf("https://placehold.co/%s/1a1a2e/eaeaea?text=%s", size, strings.ReplaceAll(req.Style, " ", "+")),
		Size:     size,
		Provider: ProviderLocal,
	}, nil
}

// HashEmbedder embeds text by hashing lowercased word tokens into a fixed
// number of buckets and normalising the result.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns an embedder producing dim-sized vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

// Embed implements Embedder.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[f.Sum32()%uint32(h.dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Scripted is a Client replaying canned responses, for tests.
// Handler, when set, takes precedence over Responses.
type Scripted struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Handler   func(ChatRequest) (string, error)
	calls     []ChatRequest
}

// Chat implements Client.
func (s *Scripted) Chat(_ context.Context, req ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.Handler != nil {
		return s.Handler(req)
	}
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", ErrEmptyResponse
	}
	resp := s.Responses[0]
	if len(s.Responses) > 1 {
		s.Responses = s.Responses[1:]
	}
	return resp, nil
}

// Calls returns the requests received so far.
func (s *Scripted) Calls() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.calls...)
}
