package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

const (
	FileName    = "example.txt"
	FileContent = "Hello from the blobgate example!\n"
	NamedUpload = "example-named"
)

type Client struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
}

// Upload posts content as a multipart file and returns the URL the gateway
// assigned to it. An empty name lets the gateway pick a random key.
func (c *Client) Upload(ctx context.Context, filename string, name string, contentType string, content []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/_upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", filename, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload of %q returned %s: %s", filename, resp.Status, text)
	}

	slog.Info("Uploaded file", "file", filename, "url", string(text))
	return string(text), nil
}

// Download fetches url and returns its body and headers.
func (c *Client) Download(ctx context.Context, url string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("download of %q returned %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Downloaded object", "url", url, "size", len(data),
		"content_type", resp.Header.Get("Content-Type"),
		"cache_control", resp.Header.Get("Cache-Control"),
		"x_cache", resp.Header.Get("X-Cache"))
	return data, resp.Header, nil
}

func (c *Client) Delete(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete of %q returned %s", url, resp.Status)
	}

	slog.Info("Deleted object", "url", url)
	return nil
}

func Run(ctx context.Context, client *Client) error {
	// 1. Upload with a random key.
	url, err := client.Upload(ctx, FileName, "", "text/plain", []byte(FileContent))
	if err != nil {
		return fmt.Errorf("failed to upload example file: %w", err)
	}

	// 2. Download it twice; the second read should come from the cache.
	for range 2 {
		data, _, err := client.Download(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to download example file: %w", err)
		}
		if string(data) != FileContent {
			return fmt.Errorf("downloaded content mismatch for %q", url)
		}
	}

	// 3. Upload with a caller-chosen name.
	named, err := client.Upload(ctx, "clip.mp4", NamedUpload, "application/octet-stream", []byte("not really a video"))
	if err != nil {
		return fmt.Errorf("failed to upload named file: %w", err)
	}
	if !strings.HasSuffix(named, "/"+NamedUpload+".mp4") {
		return fmt.Errorf("unexpected named url %q", named)
	}

	// 4. Delete both, twice each.
	for _, u := range []string{url, named, url, named} {
		if err := client.Delete(ctx, u); err != nil {
			return fmt.Errorf("failed to delete example object: %w", err)
		}
	}

	// 5. Deleted objects are gone.
	if _, _, err := client.Download(ctx, url); err == nil {
		return fmt.Errorf("object %q still readable after delete", url)
	}

	return nil
}

func main() {
	client := &Client{
		BaseURL:  strings.TrimRight(getenv("BLOBGATE_URL", "http://localhost:9000"), "/"),
		Username: getenv("BLOBGATE_USERNAME", "admin"),
		Password: getenv("BLOBGATE_PASSWORD", "admin"),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}

	ctx := context.Background()

	if err := Run(ctx, client); err != nil {
		slog.Error("error running example", "err", err)
		os.Exit(1)
	}
}
