package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CloudinaryStore uploads photos through Cloudinary's signed REST API.
type CloudinaryStore struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	maxBytes  int64
	baseURL   string
	http      *http.Client
	now       func() time.Time
}

// NewCloudinaryStore creates a Cloudinary-backed store.
func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string, maxBytes int64) *CloudinaryStore {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &CloudinaryStore{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		maxBytes:  maxBytes,
		baseURL:   "https://api.cloudinary.com/v1_1",
		http:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type cloudinaryUploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

func (c *CloudinaryStore) Save(ctx context.Context, upload *Upload) (string, error) {
	data, _, ext, err := readImage(upload, c.maxBytes)
	if err != nil {
		return "", err
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range c.signed(params) {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", "photo"+ext)
	if err != nil {
		return "", fmt.Errorf("cloudinary: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("cloudinary: write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var result cloudinaryUploadResult
	if err := c.post(ctx, "upload", w.FormDataContentType(), &buf, &result); err != nil {
		return "", err
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("cloudinary: upload returned no url")
	}
	return result.SecureURL, nil
}

func (c *CloudinaryStore) Delete(ctx context.Context, url string) error {
	publicID, ok := c.publicID(url)
	if !ok {
		return nil
	}
	params := c.signed(map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.post(ctx, "destroy", w.FormDataContentType(), &buf, nil)
}

// publicID extracts "folder/name" from https://res.cloudinary.com/<cloud>/image/upload/v123/folder/name.jpg.
func (c *CloudinaryStore) publicID(url string) (string, bool) {
	marker := "/" + c.cloudName + "/image/upload/"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", false
	}
	rest := url[i+len(marker):]
	if slash := strings.IndexByte(rest, '/'); slash > 0 && rest[0] == 'v' {
		if _, err := strconv.Atoi(rest[1:slash]); err == nil {
			rest = rest[slash+1:]
		}
	}
	rest = strings.TrimSuffix(rest, path.Ext(rest))
	return rest, rest != ""
}

func (c *CloudinaryStore) post(ctx context.Context, action, contentType string, body io.Reader, out interface{}) error {
	endpoint := fmt.Sprintf("%s/%s/image/%s", c.baseURL, c.cloudName, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("cloudinary: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: %s request: %w", action, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cloudinary: decode response: %w", err)
	}
	return nil
}

// signed adds api_key and the SHA-1 signature over the sorted params plus the API secret.
func (c *CloudinaryStore) signed(params map[string]string) map[string]string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	h := sha1.New()
	h.Write([]byte(strings.Join(pairs, "&") + c.apiSecret))

	out := make(map[string]string, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	out["api_key"] = c.apiKey
	out["signature"] = fmt.Sprintf("%x", h.Sum(nil))
	return out
}
