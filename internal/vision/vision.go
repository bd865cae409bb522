// Package vision implements the vision oracle: the "does this image
// contain X" / "where is the gap" abstraction the reCAPTCHA-enterprise
// and GeeTest solvers in internal/solve consult.
//
// Two providers are wired: an in-page provider that calls a
// browser-resident multimodal model through an injected async function
// (via chromedp.Evaluate), and an external HTTP provider posting to a
// Gemini-style endpoint, configured via the GEMINI_VISION_ENDPOINT and
// GEMINI_API_KEY environment variables.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Oracle answers the two challenge-solving questions C7 needs.
type Oracle interface {
	ClassifyTile(ctx context.Context, imageBytes []byte, targetPhrase string) (bool, error)
	LocateGap(ctx context.Context, canvasPNG []byte) (float64, error)
}

// InPageEvaluator runs js in the current browser page and unmarshals
// the result into out; satisfied by *browser.Session.EvaluateInto
// without this package importing internal/browser directly, avoiding
// an import cycle (browser solvers import vision, not the reverse).
type InPageEvaluator interface {
	EvaluateInto(js string, out interface{}) error
}

// InPageOracle asks a browser-resident multimodal model, when present,
// falling back to ErrUnavailable if "LanguageModel is not defined" (or
// any ReferenceError) is reported back from the page.
type InPageOracle struct {
	Page InPageEvaluator
}

// ErrUnavailable signals the in-page model isn't present in this
// browser build; callers should fall back to ExternalOracle.
var ErrUnavailable = fmt.Errorf("vision: in-page model unavailable")

const inPageClassifyJS = `
(async () => {
  try {
    if (typeof LanguageModel === 'undefined') return 'ReferenceError: LanguageModel is not defined';
    const session = await LanguageModel.create();
    const result = await session.prompt([
      { role: 'user', content: [
        { type: 'text', text: %q },
        { type: 'image', value: %q }
      ]}
    ]);
    return String(result).trim();
  } catch (e) {
    return 'ReferenceError: ' + e.message;
  }
})()
`

func (o *InPageOracle) ClassifyTile(_ context.Context, imageBytes []byte, targetPhrase string) (bool, error) {
	prompt := fmt.Sprintf("Does this image contain a %s? Answer only yes or no.", targetPhrase)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageBytes)
	js := fmt.Sprintf(inPageClassifyJS, prompt, dataURL)

	var reply string
	if err := o.Page.EvaluateInto(js, &reply); err != nil {
		return false, err
	}
	if strings.Contains(reply, "ReferenceError") {
		return false, ErrUnavailable
	}
	return strings.Contains(strings.ToLower(reply), "yes"), nil
}

func (o *InPageOracle) LocateGap(_ context.Context, canvasPNG []byte) (float64, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(canvasPNG)
	js := fmt.Sprintf(inPageClassifyJS, "Reply with only the horizontal pixel offset (a number) of the puzzle-piece gap in this slider image.", dataURL)

	var reply string
	if err := o.Page.EvaluateInto(js, &reply); err != nil {
		return 0, err
	}
	if strings.Contains(reply, "ReferenceError") {
		return 0, ErrUnavailable
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("vision: non-numeric gap reply %q: %w", reply, err)
	}
	return n, nil
}

// ExternalOracle posts base64 image + prompt to a configurable HTTP
// endpoint (Gemini-style), parsing the answer from a fixed JSON path.
type ExternalOracle struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewExternalOracle builds an ExternalOracle from the
// GEMINI_VISION_ENDPOINT/GEMINI_API_KEY environment variables.
func NewExternalOracle() *ExternalOracle {
	return &ExternalOracle{
		Endpoint: os.Getenv("GEMINI_VISION_ENDPOINT"),
		APIKey:   os.Getenv("GEMINI_API_KEY"),
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type visionRequest struct {
	Contents []visionContent `json:"contents"`
}

type visionContent struct {
	Parts []visionPart `json:"parts"`
}

type visionPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type visionResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (o *ExternalOracle) call(ctx context.Context, prompt string, imageBytes []byte) (string, error) {
	if o.Endpoint == "" {
		return "", fmt.Errorf("vision: GEMINI_VISION_ENDPOINT not configured")
	}
	reqBody := visionRequest{Contents: []visionContent{{Parts: []visionPart{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(imageBytes)}},
	}}}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := o.Endpoint
	if o.APIKey != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = url + sep + "key=" + o.APIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed visionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vision: empty response")
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

func (o *ExternalOracle) ClassifyTile(ctx context.Context, imageBytes []byte, targetPhrase string) (bool, error) {
	prompt := fmt.Sprintf("Does this image contain a %s? Answer only yes or no.", targetPhrase)
	reply, err := o.call(ctx, prompt, imageBytes)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(reply), "yes"), nil
}

func (o *ExternalOracle) LocateGap(ctx context.Context, canvasPNG []byte) (float64, error) {
	reply, err := o.call(ctx, "Reply with only the horizontal pixel offset (a number) of the puzzle-piece gap in this slider image.", canvasPNG)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(reply), 64)
}

// Semaphore is a counting semaphore bounding concurrent vision calls
// among the callers that share one instance.
type Semaphore chan struct{}

// NewSemaphore builds a Semaphore with the given concurrency limit.
func NewSemaphore(n int) Semaphore {
	if n <= 0 {
		n = 1
	}
	return make(Semaphore, n)
}

func (s Semaphore) Acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s Semaphore) Release() { <-s }

// FallbackOracle tries an in-page oracle first and falls back to an
// external one when the in-page model reports ErrUnavailable.
//
// Bound only guards LocateGap: ClassifyTile calls are dispatched by the
// enterprise solver under its own per-acquisition semaphore sized to
// the tile count, so gating them here too would just re-serialize what
// the caller already bounds correctly. LocateGap has no tile count to
// size against, so Bound stands in as the "capped to 1" case.
type FallbackOracle struct {
	InPage   Oracle
	External Oracle
	Bound    Semaphore
}

func (f *FallbackOracle) ClassifyTile(ctx context.Context, imageBytes []byte, targetPhrase string) (bool, error) {
	if f.InPage != nil {
		ok, err := f.InPage.ClassifyTile(ctx, imageBytes, targetPhrase)
		if err == nil {
			return ok, nil
		}
		if err != ErrUnavailable {
			return false, err
		}
	}
	if f.External == nil {
		return false, ErrUnavailable
	}
	return f.External.ClassifyTile(ctx, imageBytes, targetPhrase)
}

func (f *FallbackOracle) LocateGap(ctx context.Context, canvasPNG []byte) (float64, error) {
	if f.InPage != nil {
		gap, err := f.InPage.LocateGap(ctx, canvasPNG)
		if err == nil {
			return gap, nil
		}
		if err != ErrUnavailable {
			return 0, err
		}
	}
	if f.External == nil {
		return 0, ErrUnavailable
	}
	if f.Bound != nil {
		if err := f.Bound.Acquire(ctx); err != nil {
			return 0, err
		}
		defer f.Bound.Release()
	}
	return f.External.LocateGap(ctx, canvasPNG)
}
