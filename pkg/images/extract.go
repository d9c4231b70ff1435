package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/backend"
)

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)
	bareImageURL  = regexp.MustCompile(`(?i)https?://\S+?\.(?:jpg|jpeg|png|gif|webp|bmp)(?:\?\S*)?(?:\s|$|\))`)
)

// ExtractURL finds the generated image in a bot response: a file event
// first, then a markdown image link, then a bare image URL.
func ExtractURL(res *backend.Result) string {
	for _, att := range res.Attachments {
		if att.URL != "" {
			return att.URL
		}
	}
	if m := markdownImage.FindStringSubmatch(res.Text); m != nil {
		return m[1]
	}
	if m := bareImageURL.FindString(res.Text); m != "" {
		return trimURL(m)
	}
	return ""
}

func trimURL(s string) string {
	for len(s) > 0 {
		switch s[len(s)-1] {
		case ' ', '\t', '\n', '\r', ')':
			s = s[:len(s)-1]
		default:
			return s
		}
	}
	return s
}

// download fetches an image and returns it base64 encoded.
func (g *Generator) download(ctx context.Context, url string) (string, error) {
	if g.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.DownloadTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apierror.AttachmentFetch(url, false, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", apierror.AttachmentFetch(url, false, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apierror.AttachmentFetch(url, false, fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierror.AttachmentFetch(url, false, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
