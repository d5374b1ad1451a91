package here

import (
	"net/http"
	"strings"
)

// newRewriteClient creates an HTTP client that redirects requests for the
// given target prefixes to a test server URL.
func newRewriteClient(testServerURL string, targetPrefixes ...string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:           http.DefaultTransport,
			testServer:     testServerURL,
			targetPrefixes: targetPrefixes,
		},
	}
}

type rewriteTransport struct {
	base           http.RoundTripper
	testServer     string
	targetPrefixes []string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for _, prefix := range t.targetPrefixes {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(t.testServer + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}
