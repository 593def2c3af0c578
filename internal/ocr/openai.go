package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/emandor/mailsift/internal/telemetry"
)

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

const visionPrompt = "Extract plain text (OCR) from this image. Keep every email address exactly as written. Return ONLY the raw text (no explanation)."

// OpenAIVision is an alternate engine backed by a vision chat model.
// A failed call is reported once; there is no retry.
type OpenAIVision struct {
	Key, Model string
	Endpoint   string
	Client     *http.Client
	Limiter    *rate.Limiter
}

func NewOpenAIVision(key, model string, rps, burst int) *OpenAIVision {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &OpenAIVision{
		Key:      key,
		Model:    model,
		Endpoint: openAIChatURL,
		Client:   &http.Client{Timeout: 60 * time.Second},
		Limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (o *OpenAIVision) Name() string { return "openai-vision" }

func (o *OpenAIVision) Read(ctx context.Context, imgB []byte, mime string) (Result, error) {
	if err := o.Limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	// detail "high": small print such as addresses is lost at low detail
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(imgB)
	payload := map[string]any{
		"model": o.Model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]string{"type": "text", "text": visionPrompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "high"}},
				},
			},
		},
		"temperature": 0.0,
		"max_tokens":  2048,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+o.Key)
	req.Header.Set("Content-Type", "application/json")

	log := telemetry.L().With().Str("provider", o.Name()).Logger()
	start := time.Now()

	resp, err := o.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("openai vision request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("openai vision read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("ocr_http_error")
		return Result{}, errors.New("openai vision http " + resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("openai vision decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return Result{}, errors.New("openai vision: empty choices")
	}
	txt := out.Choices[0].Message.Content
	log.Debug().Int("latency_ms", int(time.Since(start)/time.Millisecond)).Int("chars", len(txt)).Msg("ocr_ok")
	return Result{Text: txt}, nil
}
