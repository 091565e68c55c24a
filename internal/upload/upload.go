// Package upload sends proof-of-payment files to external object storage.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Uploader stores a file and returns a URL anyone can dereference.
type Uploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
}

// HTTPUploader posts files as multipart forms to an unsigned upload endpoint
// that answers with {"secure_url": "..."}.
type HTTPUploader struct {
	Endpoint string
	Preset   string
	Client   *http.Client
}

func NewHTTPUploader(endpoint, preset string) *HTTPUploader {
	return &HTTPUploader{
		Endpoint: endpoint,
		Preset:   preset,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

func (u *HTTPUploader) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", fmt.Errorf("read upload body: %w", err)
	}
	if u.Preset != "" {
		if err := mw.WriteField("upload_preset", u.Preset); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.SecureURL == "" {
		return "", errors.New("upload response has no url")
	}
	return out.SecureURL, nil
}
