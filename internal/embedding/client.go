package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPExtractor calls the external face-embedding model over HTTP. The model
// service owns detection and encoding; this client only validates the shape
// of what comes back.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExtractor creates a client for the model service at baseURL.
func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type extractResponse struct {
	FaceFound bool      `json:"face_found"`
	Embedding []float32 `json:"embedding"`
	Quality   float64   `json:"quality"`
}

// Extract sends the image to the model service and returns its embedding.
func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) (Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(image))
	if err != nil {
		return Extraction{}, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return Extraction{}, fmt.Errorf("call extractor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Extraction{}, fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	var body extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Extraction{}, fmt.Errorf("decode extractor response: %w", err)
	}
	if !body.FaceFound {
		return Extraction{}, ErrNoFace
	}

	vec, err := FromSlice(body.Embedding)
	if err != nil {
		return Extraction{}, fmt.Errorf("extractor returned malformed embedding: %w", err)
	}
	return Extraction{Vector: vec, Quality: body.Quality}, nil
}
