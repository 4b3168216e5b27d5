package discover

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsrt-io/rtfetch/internal/feed"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listingXML(prefixes ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	for _, p := range prefixes {
		fmt.Fprintf(&b, "<CommonPrefixes><Prefix>%s</Prefix></CommonPrefixes>", p)
	}
	b.WriteString(`</ListBucketResult>`)
	return b.String()
}

func TestFeedsFromXMLListing(t *testing.T) {
	vpToken := feed.EncodeURL("https://api.actransit.org/transit/gtfsrt/vehicles")
	tuToken := feed.EncodeURL("https://www3.septa.org/gtfsrt/tu.pb")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		w.Header().Set("Content-Type", "application/xml")
		switch prefix {
		case "vehicle_positions/":
			fmt.Fprint(w, listingXML("vehicle_positions/date=2026-01-01/", "vehicle_positions/date=2026-01-02/"))
		case "vehicle_positions/date=2026-01-01/":
			fmt.Fprint(w, listingXML("vehicle_positions/date=2026-01-01/base64url="+vpToken+"/"))
		case "trip_updates/":
			fmt.Fprint(w, listingXML("trip_updates/date=2026-01-01/"))
		case "trip_updates/date=2026-01-01/":
			fmt.Fprint(w, listingXML("trip_updates/date=2026-01-01/base64url="+tuToken+"/"))
		default:
			fmt.Fprint(w, listingXML())
		}
	}))
	defer srv.Close()

	c := New(srv.URL, quietLogger())
	found, err := c.Feeds(context.Background())
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, feed.TypeVehiclePositions, found[0].Type)
	assert.Equal(t, "https://api.actransit.org/transit/gtfsrt/vehicles", found[0].URL)
	assert.Equal(t, vpToken, found[0].Token)
	assert.Equal(t, feed.TypeTripUpdates, found[1].Type)
}

func TestFeedsFromHTMLIndexFallback(t *testing.T) {
	token := feed.EncodeURL("https://api.actransit.org/transit/gtfsrt/vehicles")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No XML API on this mirror: listing queries fail.
		if r.URL.RawQuery != "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/vehicle_positions/":
			fmt.Fprint(w, `<html><body><a href="../">..</a><a href="date=2026-01-01/">date=2026-01-01/</a></body></html>`)
		case "/vehicle_positions/date=2026-01-01/":
			fmt.Fprintf(w, `<html><body><a href="base64url=%s/">base64url=%s/</a></body></html>`, token, token)
		default:
			fmt.Fprint(w, `<html><body></body></html>`)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, quietLogger())
	found, err := c.Feeds(context.Background())
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, feed.TypeVehiclePositions, found[0].Type)
	assert.Equal(t, token, found[0].Token)
}

func TestFeedsSkipsUndecodableTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		w.Header().Set("Content-Type", "application/xml")
		switch prefix {
		case "vehicle_positions/":
			fmt.Fprint(w, listingXML("vehicle_positions/date=2026-01-01/"))
		case "vehicle_positions/date=2026-01-01/":
			fmt.Fprint(w, listingXML("vehicle_positions/date=2026-01-01/base64url=!!!bad!!!/"))
		default:
			fmt.Fprint(w, listingXML())
		}
	}))
	defer srv.Close()

	c := New(srv.URL, quietLogger())
	found, err := c.Feeds(context.Background())
	assert.Error(t, err, "decode failures are reported")
	assert.Empty(t, found, "but nothing bogus is emitted")
}

func TestWriteSeedCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	feeds := []Found{
		{Type: feed.TypeVehiclePositions, URL: "https://a.example/vp", Token: "dnA"},
		{Type: feed.TypeServiceAlerts, URL: "https://a.example/sa", Token: "c2E"},
	}
	require.NoError(t, WriteSeedCSV(fs, "seeds/available_feeds.csv", feeds))

	content, err := afero.ReadFile(fs, "seeds/available_feeds.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "feed_type,feed_url,base64url", lines[0])
	assert.Equal(t, "vehicle_positions,https://a.example/vp,dnA", lines[1])
}
