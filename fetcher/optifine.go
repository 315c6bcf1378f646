package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/tie/launcher/models"
)

var optifineSel = cascadia.MustCompile("#Download > a")

// OptiFine resolves "optifine:<file>" URLs by scraping the adload page,
// since OptiFine does not publish direct download links.
type OptiFine struct {
	// BaseURL defaults to https://optifine.net.
	BaseURL string
}

func (o OptiFine) base() string {
	if o.BaseURL == "" {
		return "https://optifine.net"
	}
	return strings.TrimRight(o.BaseURL, "/")
}

func (o OptiFine) Resolve(ctx context.Context, c *http.Client, rawurl string) (string, error) {
	file := strings.TrimPrefix(rawurl, "optifine:")
	u := fmt.Sprintf("%s/adloadx?f=%s", o.base(), url.QueryEscape(file))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{URL: u, Status: resp.StatusCode}
	}

	// Don’t read HTML pages larger than 1MiB.
	lr := io.LimitReader(resp.Body, 1024*1024)

	root, err := html.Parse(lr)
	if err != nil {
		return "", err
	}
	n := optifineSel.MatchFirst(root)
	if n == nil || n.Type != html.ElementNode {
		return "", models.ErrUnexpectedNode
	}
	if n.Namespace != "" || n.Data != "a" {
		return "", models.ErrUnexpectedNode
	}
	for _, attr := range n.Attr {
		if attr.Namespace != "" {
			continue
		}
		if attr.Key != "href" {
			continue
		}
		return fmt.Sprintf("%s/%s", o.base(), strings.TrimLeft(attr.Val, "/")), nil
	}
	return "", models.ErrUnexpectedNode
}
