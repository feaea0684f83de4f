// Package titles resolves page titles for mentioned links. Best effort:
// a page without a usable title is a normal outcome.
package titles

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/understudybot/understudy/internal/core"
	"github.com/understudybot/understudy/pkg/log"
	"golang.org/x/net/html"
)

const fetchTimeout = 10 * time.Second

type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// Fetch retrieves url and extracts its <title> text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, bool) {
	logger := log.FromCtx(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("failed to create title request")
		return "", false
	}
	req.Header.Set("User-Agent", core.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("title fetch failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("title fetch got non-200")
		return "", false
	}

	title, ok := extractTitle(resp.Body)
	if !ok {
		logger.Debug().Str("url", url).Msg("no title found")
	}
	return title, ok
}

// extractTitle tokenizes the document until the <title> element and strips
// the trailing " - site name" suffix most pages append.
func extractTitle(body io.Reader) (string, bool) {
	z := html.NewTokenizer(body)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			if z.Next() != html.TextToken {
				return "", false
			}
			title := strings.TrimSpace(z.Token().Data)
			if idx := strings.LastIndex(title, " - "); idx > 0 {
				title = title[:idx]
			}
			if title == "" {
				return "", false
			}
			return title, true
		}
	}
}
