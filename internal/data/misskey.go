package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

// misskeyRepo implements the Misskey REST interface
type misskeyRepo struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// NewMessageRepo creates a Misskey REST client for the given instance host
func NewMessageRepo(host, token string, log *zap.Logger) repo.MessageRepo {
	return &misskeyRepo{
		baseURL:    "https://" + host,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// newMessageRepoWithBase is used by tests to point at a local server
func newMessageRepoWithBase(baseURL, token string, log *zap.Logger) *misskeyRepo {
	return &misskeyRepo{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

func (r *misskeyRepo) post(ctx context.Context, path string, payload map[string]any, out any) error {
	payload["i"] = r.token
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("misskey %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("misskey %s: status %d: %s", path, resp.StatusCode, errBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("misskey %s: decode response: %w", path, err)
		}
	}
	return nil
}

// Me returns the bot's own username
func (r *misskeyRepo) Me(ctx context.Context) (string, error) {
	var me struct {
		Username string `json:"username"`
	}
	if err := r.post(ctx, "/api/i", map[string]any{}, &me); err != nil {
		return "", err
	}
	return me.Username, nil
}

// CreateNote posts a note with home visibility
func (r *misskeyRepo) CreateNote(ctx context.Context, text, replyID string, fileIDs []string) error {
	payload := map[string]any{
		"text":       text,
		"visibility": "home",
	}
	if replyID != "" {
		payload["replyId"] = replyID
	}
	if len(fileIDs) > 0 {
		payload["fileIds"] = fileIDs
	}

	var result struct {
		CreatedNote struct {
			ID string `json:"id"`
		} `json:"createdNote"`
	}
	if err := r.post(ctx, "/api/notes/create", payload, &result); err != nil {
		return err
	}
	r.log.Debug("note created", zap.String("noteId", result.CreatedNote.ID))
	return nil
}

// UploadFile uploads image bytes to the drive as <name>.png
func (r *misskeyRepo) UploadFile(ctx context.Context, data []byte, name string) (*repo.UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", name+".png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("i", r.token); err != nil {
		return nil, fmt.Errorf("write token field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/drive/files/create", &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload file: status %d: %s", resp.StatusCode, errBody)
	}

	var result struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("upload file: decode response: %w", err)
	}

	r.log.Info("file uploaded to drive", zap.String("fileId", result.ID))
	return &repo.UploadResult{ID: result.ID, URL: result.URL}, nil
}

// AddEmoji registers an uploaded file as a custom emoji
func (r *misskeyRepo) AddEmoji(ctx context.Context, name, fileID string) error {
	payload := map[string]any{
		"name":        name,
		"fileId":      fileID,
		"aliases":     []string{},
		"isSensitive": false,
		"localOnly":   false,
	}
	if err := r.post(ctx, "/api/admin/emoji/add", payload, nil); err != nil {
		return err
	}
	r.log.Info("emoji registered", zap.String("name", name))
	return nil
}
