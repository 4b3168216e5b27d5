// Package discover enumerates the feeds present in the remote archive
// bucket and writes the seed CSV used to bootstrap the catalog.
//
// The public bucket answers S3-style XML listings; mirrors that serve
// a plain autoindex page are handled by falling back to parsing the
// HTML directory listing.
package discover

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"

	"github.com/gtfsrt-io/rtfetch/internal/feed"
	"github.com/gtfsrt-io/rtfetch/internal/transport"
)

// Found is one feed discovered in the bucket.
type Found struct {
	Type  feed.Type
	URL   string
	Token string
}

var tokenRe = regexp.MustCompile(`base64url=([^/]+)`)

// Crawler lists the bucket's partition prefixes.
type Crawler struct {
	Client    *http.Client
	BaseURL   string
	UserAgent func() string
	Logger    *slog.Logger
}

// New returns a Crawler against baseURL with default client settings.
func New(baseURL string, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		Client:    transport.DefaultClient(),
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: transport.RandomUserAgent,
		Logger:    logger,
	}
}

// Feeds discovers all feeds across every feed type. Listing one date
// partition per type is enough: every feed appears under each of its
// dates. Per-type listing failures are joined and reported alongside
// whatever was found.
func (c *Crawler) Feeds(ctx context.Context) ([]Found, error) {
	var found []Found
	var crawlErr error
	seen := make(map[string]bool)

	for _, ft := range feed.Types() {
		select {
		case <-ctx.Done():
			return found, errors.Join(crawlErr, ctx.Err())
		default:
		}

		l := c.Logger.With(slog.String("feed_type", string(ft)))
		l.Debug("Scanning feed type.")

		datePrefixes, err := c.listPrefixes(ctx, string(ft)+"/")
		if err != nil {
			crawlErr = errors.Join(crawlErr, fmt.Errorf("list %s: %w", ft, err))
			l.Warn("Skip: listing date partitions failed.", "error", err)
			continue
		}
		if len(datePrefixes) == 0 {
			l.Debug("No date partitions.")
			continue
		}
		sort.Strings(datePrefixes)

		tokenPrefixes, err := c.listPrefixes(ctx, datePrefixes[0])
		if err != nil {
			crawlErr = errors.Join(crawlErr, fmt.Errorf("list %s: %w", datePrefixes[0], err))
			l.Warn("Skip: listing feed partitions failed.", "error", err)
			continue
		}

		for _, prefix := range tokenPrefixes {
			m := tokenRe.FindStringSubmatch(prefix)
			if m == nil {
				continue
			}
			token := m[1]
			key := string(ft) + "/" + token
			if seen[key] {
				continue
			}
			seen[key] = true

			feedURL, err := feed.DecodeToken(token)
			if err != nil {
				crawlErr = errors.Join(crawlErr, err)
				l.Warn("Skipping undecodable partition token.", slog.String("token", token), "error", err)
				continue
			}
			found = append(found, Found{Type: ft, URL: feedURL, Token: token})
			l.Debug("Found feed.", slog.String("url", feedURL))
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Type != found[j].Type {
			return typeRank(found[i].Type) < typeRank(found[j].Type)
		}
		return found[i].URL < found[j].URL
	})
	return found, crawlErr
}

func typeRank(ft feed.Type) int {
	for i, t := range feed.Types() {
		if t == ft {
			return i
		}
	}
	return len(feed.Types())
}

// listPrefixes lists the immediate child prefixes of prefix, trying the
// bucket XML API first and falling back to an HTML index page.
func (c *Crawler) listPrefixes(ctx context.Context, prefix string) ([]string, error) {
	prefixes, xmlErr := c.listXML(ctx, prefix)
	if xmlErr == nil {
		return prefixes, nil
	}
	prefixes, htmlErr := c.listHTML(ctx, prefix)
	if htmlErr == nil {
		return prefixes, nil
	}
	return nil, errors.Join(xmlErr, htmlErr)
}

type listBucketResult struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

func (c *Crawler) listXML(ctx context.Context, prefix string) ([]string, error) {
	listURL := fmt.Sprintf("%s/?delimiter=%s&prefix=%s",
		c.BaseURL, url.QueryEscape("/"), url.QueryEscape(prefix))
	body, err := c.get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	var result listBucketResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse listing for %s: %w", prefix, err)
	}
	out := make([]string, 0, len(result.CommonPrefixes))
	for _, p := range result.CommonPrefixes {
		out = append(out, p.Prefix)
	}
	return out, nil
}

// listHTML parses an autoindex-style directory page, collecting links
// that end in "/" as child prefixes.
func (c *Crawler) listHTML(ctx context.Context, prefix string) ([]string, error) {
	body, err := c.get(ctx, c.BaseURL+"/"+prefix)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index page for %s: %w", prefix, err)
	}

	var out []string
	for _, link := range parseLinks(root, "/") {
		link = strings.TrimPrefix(link, "/")
		if link == "" || strings.HasPrefix(link, "..") {
			continue
		}
		if strings.HasPrefix(link, prefix) {
			out = append(out, link)
		} else {
			out = append(out, prefix+link)
		}
	}
	return out, nil
}

// parseLinks finds hrefs ending with suffix in an HTML node tree,
// depth first.
func parseLinks(n *html.Node, suffix string) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(nd *html.Node) {
		if nd.Type == html.ElementNode && nd.Data == "a" {
			for _, a := range nd.Attr {
				if a.Key == "href" {
					if strings.HasSuffix(a.Val, suffix) && a.Val != "/" {
						out = append(out, a.Val)
					}
					break
				}
			}
		}
		for child := nd.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

func (c *Crawler) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.UserAgent())

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status '%s' listing %s", resp.Status, rawURL)
	}
	return io.ReadAll(resp.Body)
}

// WriteSeedCSV writes discovered feeds as the seed CSV. Agency columns
// are left for curation; the loader ignores rows without an agency_id.
func WriteSeedCSV(fs afero.Fs, path string, feeds []Found) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"feed_type", "feed_url", "base64url"}); err != nil {
		return err
	}
	for _, fd := range feeds {
		if err := w.Write([]string{string(fd.Type), fd.URL, fd.Token}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
