package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

// rendererRepo implements the renderer service client.
// The font list is fetched once and cached for the process lifetime.
type rendererRepo struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	fontsMu sync.Mutex
	fonts   []string
}

// NewRendererRepo creates a renderer client for the given base URL
func NewRendererRepo(baseURL string, log *zap.Logger) repo.RendererRepo {
	return &rendererRepo{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

type fontInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Fonts returns the available font ids, cached after the first success
func (r *rendererRepo) Fonts(ctx context.Context) ([]string, error) {
	r.fontsMu.Lock()
	defer r.fontsMu.Unlock()

	if r.fonts != nil {
		return r.fonts, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/fonts", nil)
	if err != nil {
		return nil, fmt.Errorf("build fonts request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fonts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch fonts: status %d", resp.StatusCode)
	}

	var infos []fontInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("fetch fonts: decode response: %w", err)
	}

	fonts := make([]string, 0, len(infos))
	for _, info := range infos {
		fonts = append(fonts, info.ID)
	}
	r.fonts = fonts
	r.log.Info("fetched font list from renderer", zap.Int("fontCount", len(fonts)))

	return fonts, nil
}

// ClearFontCache drops the cached font list
func (r *rendererRepo) ClearFontCache() {
	r.fontsMu.Lock()
	defer r.fontsMu.Unlock()
	r.fonts = nil
}

// Render renders the emoji and returns the raw image bytes
func (r *rendererRepo) Render(ctx context.Context, params *domain.EmojiParams) ([]byte, error) {
	body, err := json.Marshal(renderRequest(params))
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("render: status %d: %s", resp.StatusCode, errBody)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("render: read response: %w", err)
	}
	return image, nil
}

// renderPayload is the /generate request body. The shortcode is not part of
// the rendering contract, and a motion block whose type is none is dropped.
type renderPayload struct {
	Text   string              `json:"text"`
	Layout *domain.EmojiLayout `json:"layout,omitempty"`
	Style  domain.EmojiStyle   `json:"style"`
	Motion *domain.EmojiMotion `json:"motion,omitempty"`
}

func renderRequest(params *domain.EmojiParams) *renderPayload {
	payload := &renderPayload{
		Text:   params.Text,
		Layout: params.Layout,
		Style:  params.Style,
	}
	if params.HasMotion() {
		payload.Motion = params.Motion
	}
	return payload
}
