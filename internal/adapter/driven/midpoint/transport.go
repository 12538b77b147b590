package midpoint

import "net/http"

// basicAuthTransport supplies the channel-level credentials on every request.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

// RoundTrip clones req with an Authorization header; the caller's request is
// left untouched as required by http.RoundTripper.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(r)
}

// withBasicAuth returns a copy of hc whose transport authenticates as creds.
func withBasicAuth(hc *http.Client, creds Credentials) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = &basicAuthTransport{
		username: creds.Username,
		password: creds.Password,
		base:     base,
	}
	return &wrapped
}
