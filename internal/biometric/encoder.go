package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoFace is returned when the encoder finds no face in the image.
var ErrNoFace = errors.New("no face detected")

// Encoder turns a normalized image into face descriptors, one per detected
// face. The actual model is an external capability; this package only
// depends on the contract.
type Encoder interface {
	Encode(ctx context.Context, normalizedPNG []byte) ([]Descriptor, error)
}

// HTTPEncoder calls a face-embedding sidecar over HTTP. The sidecar accepts
// a PNG body on POST /encodings and responds with a JSON array of
// descriptor vectors.
type HTTPEncoder struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEncoder(baseURL string, timeout time.Duration) *HTTPEncoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEncoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type encodeResponse struct {
	Encodings [][]float64 `json:"encodings"`
}

func (e *HTTPEncoder) Encode(ctx context.Context, normalizedPNG []byte) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/encodings", bytes.NewReader(normalizedPNG))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("encoder returned %s: %s", res.Status, bytes.TrimSpace(body))
	}

	var parsed encodeResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("encoder response malformed: %w", err)
	}
	if len(parsed.Encodings) == 0 {
		return nil, ErrNoFace
	}

	out := make([]Descriptor, 0, len(parsed.Encodings))
	for _, enc := range parsed.Encodings {
		out = append(out, Descriptor(enc))
	}
	return out, nil
}

// ExtractOne runs normalization plus encoding and keeps the first detected
// face. Picking the first is a deliberate policy for multi-face captures,
// matching the detector's own ordering, not an accident of iteration.
func ExtractOne(ctx context.Context, enc Encoder, raw []byte, maxBytes int) (Descriptor, error) {
	normalized, err := NormalizeImage(raw, maxBytes)
	if err != nil {
		return nil, err
	}
	descriptors, err := enc.Encode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return descriptors[0], nil
}
