package opengroup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/retry"
)

// UploadResult is the subset of a multipart upload response this client
// surfaces.
type UploadResult struct {
	ID  int64
	URL string
}

// UploadFile streams content as a multipart/form-data POST to
// {server}/files. The multipart encoding itself is treated as an opaque
// streaming primitive; this method only owns the auth/retry wrapper
// around it.
func (c *Client) UploadFile(ctx context.Context, server, filename, contentType string, content io.Reader) (UploadResult, error) {
	return c.upload(ctx, "files.upload", server+"/files", filename, contentType, content)
}

// UploadAvatar streams content as the caller's new avatar image.
func (c *Client) UploadAvatar(ctx context.Context, server, filename, contentType string, content io.Reader) (UploadResult, error) {
	return c.upload(ctx, "users.me.avatar", server+"/users/me/avatar", filename, contentType, content)
}

func (c *Client) upload(ctx context.Context, endpoint, url, filename, contentType string, content io.Reader) (UploadResult, error) {
	body, boundary, err := buildMultipart(filename, contentType, content)
	if err != nil {
		return UploadResult{}, errs.Wrap(errs.KindGeneric, err)
	}

	var res httpclient.Result
	retryErr := retry.Do(ctx, "opengroup.upload", func(ctx context.Context) error {
		tok, err := c.token(ctx, serverOrigin(url))
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return errs.Wrap(errs.KindGeneric, err)
		}
		req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return errs.NewHTTPRequestFailed(0, nil, err)
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.NewHTTPRequestFailed(resp.StatusCode, nil, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errs.NewHTTPRequestFailed(resp.StatusCode, raw, nil)
		}
		decoded := httpclient.Result{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return errs.NewParsingFailed(err)
		}
		res = decoded
		return nil
	})

	outcome := "ok"
	if retryErr != nil {
		outcome = "error"
	}
	metrics.OpenGroupRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	if retryErr != nil {
		return UploadResult{}, retryErr
	}

	return parseUploadResult(res)
}

func parseUploadResult(res httpclient.Result) (UploadResult, error) {
	data, ok := res["data"].(map[string]any)
	if !ok {
		return UploadResult{}, errs.NewParsingFailed(fmt.Errorf("upload response missing data object"))
	}
	id, _ := parseOptionalInt64(data, "id")
	url, _ := data["url"].(string)
	if url == "" {
		if avatarImage, ok := data["avatar_image"].(map[string]any); ok {
			url, _ = avatarImage["url"].(string)
		}
	}
	return UploadResult{ID: id, URL: url}, nil
}

// buildMultipart encodes a single-file multipart/form-data body,
// returning the encoded bytes and the boundary used.
func buildMultipart(filename, contentType string, content io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(multipartFileHeader(filename, contentType))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.Boundary(), nil
}

func multipartFileHeader(filename, contentType string) map[string][]string {
	return map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	}
}

// serverOrigin extracts the scheme://host[:port] prefix from a full
// endpoint URL, matching the server key UploadFile/UploadAvatar's token
// cache uses.
func serverOrigin(fullURL string) string {
	idx := len(fullURL)
	slashes := 0
	for i, r := range fullURL {
		if r == '/' {
			slashes++
			if slashes == 3 {
				idx = i
				break
			}
		}
	}
	return fullURL[:idx]
}
