package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeURLKnownTokens(t *testing.T) {
	// Tokens as they appear in the public bucket's partition keys.
	cases := map[string]string{
		"https://api.actransit.org/transit/gtfsrt/vehicles":    "aHR0cHM6Ly9hcGkuYWN0cmFuc2l0Lm9yZy90cmFuc2l0L2d0ZnNydC92ZWhpY2xlcw",
		"https://api.actransit.org/transit/gtfsrt/tripupdates": "aHR0cHM6Ly9hcGkuYWN0cmFuc2l0Lm9yZy90cmFuc2l0L2d0ZnNydC90cmlwdXBkYXRlcw",
		"https://api.actransit.org/transit/gtfsrt/alerts":      "aHR0cHM6Ly9hcGkuYWN0cmFuc2l0Lm9yZy90cmFuc2l0L2d0ZnNydC9hbGVydHM",
	}
	for url, want := range cases {
		assert.Equal(t, want, EncodeURL(url))
	}
}

func TestEncodeURLHTTPPrefix(t *testing.T) {
	token := EncodeURL("http://example.com/feed.pb")
	assert.True(t, token[0] == '~', "plain-http feeds carry the ~ prefix")

	decoded, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/feed.pb", decoded)
}

func TestDecodeRoundTrip(t *testing.T) {
	urls := []string{
		"https://api.actransit.org/transit/gtfsrt/vehicles",
		"https://www3.septa.org/gtfsrt/septa-pa-us/Vehicle/rtVehiclePosition.pb",
		"http://gtfs.example.org/rt?key=abc&type=vp",
		"https://example.com/feed with spaces",
		"a",
	}
	for _, url := range urls {
		decoded, err := DecodeToken(EncodeURL(url))
		require.NoError(t, err, "url %q", url)
		assert.Equal(t, url, decoded)
	}
}

func TestDecodeTokenPadded(t *testing.T) {
	// "https://x" encodes to 12 base64 chars, so a padded variant of a
	// shorter URL exercises the re-padding tolerance.
	decoded, err := DecodeToken("aHR0cHM6Ly94")
	require.NoError(t, err)
	assert.Equal(t, "https://x", decoded)

	// Explicitly padded token for "ab" ("YWI=").
	decoded, err = DecodeToken("YWI=")
	require.NoError(t, err)
	assert.Equal(t, "ab", decoded)
}

func TestDecodeTokenMalformed(t *testing.T) {
	cases := []string{
		"",            // empty
		"~",           // prefix only
		"not base64!", // wrong alphabet
		"YWI==",       // over-padded for its length
		"Y=WI",        // padding inside token
		"aHR0cHM6Ly9hcGkuYWN0cmFuc2l0Lm9yZy=", // inconsistent padding
	}
	for _, token := range cases {
		_, err := DecodeToken(token)
		require.Error(t, err, "token %q", token)
		var decErr *DecodeError
		assert.ErrorAs(t, err, &decErr)
	}
}

func TestParseType(t *testing.T) {
	for _, ft := range Types() {
		parsed, err := ParseType(string(ft))
		require.NoError(t, err)
		assert.Equal(t, ft, parsed)
	}
	_, err := ParseType("vehiclepositions")
	assert.Error(t, err)
}
