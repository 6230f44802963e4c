package scheme

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/resolve"
)

// HTTPFactory resolves https:/http: URIs via a configured http.Client
// (§6.1). Listing is unsupported: a glob import against an https: URI
// fails with the "not globbable" diagnostic.
type HTTPFactory struct {
	client *http.Client
	scheme string
}

func NewHTTPFactory(scheme string, client *http.Client) *HTTPFactory {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFactory{client: client, scheme: scheme}
}

func (f *HTTPFactory) Scheme() string { return f.scheme }

func (f *HTTPFactory) Resolve(uri string) (resolve.ResolvedModuleKey, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != f.scheme {
		return resolve.ResolvedModuleKey{}, perrors.Newf(perrors.Resolve, "malformed %s URI %q", f.scheme, uri)
	}
	return resolve.ResolvedModuleKey{NormalizedURI: u.String(), Scheme: f.scheme, Globbable: false}, nil
}

func (f *HTTPFactory) LoadSource(key resolve.ResolvedModuleKey) (string, error) {
	resp, err := f.client.Get(key.NormalizedURI)
	if err != nil {
		return "", perrors.Newf(perrors.IO, "fetching `%s`: %v", key.NormalizedURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", perrors.Newf(perrors.Resolve, "module `%s` not found: HTTP %d", key.NormalizedURI, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", perrors.Newf(perrors.IO, "reading `%s`: %v", key.NormalizedURI, err)
	}
	return string(b), nil
}

func (f *HTTPFactory) HasElement(resolve.ResolvedModuleKey, string) (bool, error) {
	return false, nil
}

func (f *HTTPFactory) ListElements(resolve.ResolvedModuleKey) ([]string, error) {
	return nil, perrors.Newf(perrors.Resolve, "scheme `%s` does not support glob import", f.scheme)
}

func (f *HTTPFactory) Dependencies(resolve.ResolvedModuleKey) (map[string]resolve.Dependency, error) {
	return nil, nil
}
