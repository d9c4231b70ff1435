package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/files"
)

// fetch downloads a remote attachment. Failures the client can fix (bad
// URL, 4xx) are 400; everything else is 502. Nothing is retried.
func (c *Codec) fetch(ctx context.Context, raw string) (resolved, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported URL %q", raw)
		}
		return resolved{}, apierror.AttachmentFetch(raw, true, err)
	}

	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return resolved{}, apierror.AttachmentFetch(raw, true, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return resolved{}, apierror.AttachmentFetch(raw, false, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		cause := fmt.Errorf("status %d", resp.StatusCode)
		return resolved{}, apierror.AttachmentFetch(raw, resp.StatusCode < 500, cause)
	}

	if c.limit > 0 && resp.ContentLength > c.limit {
		return resolved{}, apierror.PayloadTooLarge("messages", resp.ContentLength, c.limit)
	}

	reader := io.Reader(resp.Body)
	if c.limit > 0 {
		reader = io.LimitReader(resp.Body, c.limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return resolved{}, apierror.AttachmentFetch(raw, false, err)
	}
	if c.limit > 0 && int64(len(data)) > c.limit {
		return resolved{}, apierror.PayloadTooLarge("messages", int64(len(data)), c.limit)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "attachment"
	}
	mimeType := files.DetectType(name, resp.Header.Get("Content-Type"), data)
	return resolved{name: withExtension(name, mimeType), mimeType: mimeType, data: data}, nil
}
