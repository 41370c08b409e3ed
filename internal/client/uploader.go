package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chat-relay/internal/models"

	"github.com/valyala/fasthttp"
)

const defaultUploadTimeout = 30 * time.Second

// Uploader stores a local file out of band and returns where it landed.
type Uploader interface {
	Upload(ctx context.Context, path string) (models.UploadResponse, error)
}

// HTTPUploader posts files to the relay's /upload endpoint.
type HTTPUploader struct {
	endpoint string
	client   *fasthttp.Client
	timeout  time.Duration
}

// NewHTTPUploader targets baseURL + "/upload", e.g. "http://localhost:3001".
func NewHTTPUploader(baseURL string) *HTTPUploader {
	return &HTTPUploader{
		endpoint: strings.TrimRight(baseURL, "/") + "/upload",
		client: &fasthttp.Client{
			Name:                "chat-relay-client",
			MaxResponseBodySize: 1 << 20,
		},
		timeout: defaultUploadTimeout,
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, path string) (models.UploadResponse, error) {
	body, contentType, err := multipartFile(path)
	if err != nil {
		return models.UploadResponse{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.SetBodyRaw(body)

	timeout := u.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return models.UploadResponse{}, err
	}
	if err := u.client.DoTimeout(req, resp, timeout); err != nil {
		return models.UploadResponse{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &failure)
		if failure.Error == "" {
			failure.Error = fasthttp.StatusMessage(resp.StatusCode())
		}
		return models.UploadResponse{}, fmt.Errorf("upload %s: %d %s", filepath.Base(path), resp.StatusCode(), failure.Error)
	}

	var out models.UploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return models.UploadResponse{}, fmt.Errorf("upload response: %w", err)
	}
	if out.URL == "" {
		return models.UploadResponse{}, errors.New("upload response: missing url")
	}
	if out.Type == "" {
		out.Type = models.TypeForMIME(mime.TypeByExtension(filepath.Ext(path)))
	}
	return out, nil
}

// multipartFile builds a form body with path under the "file" field.
func multipartFile(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", ctype)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
