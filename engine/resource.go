package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// The Resource type wraps a streamable file or remote resource.
type Resource struct {
	io.ReadCloser
	url *url.URL

	// The advertised payload size or -1 if unknown.
	size int64
}

// Returns the path to this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Returns true if the resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Get the resource size in bytes or -1 if it is not known in advance.
func (r *Resource) Size() int64 {
	return r.size
}

// Open a resource data stream. This function can handle http/https URLs by
// delegating to the net/http package; everything without a scheme is treated
// as a local file. The caller must close the returned resource.
func OpenResource(ctx context.Context, pathToResource string) (*Resource, error) {
	// Replace backslashes with forward slashes and try parsing as a URL
	url, err := url.Parse(strings.ReplaceAll(pathToResource, `\`, `/`))
	if err != nil {
		return nil, fmt.Errorf("resource: could not parse '%s': %w", pathToResource, err)
	}

	switch url.Scheme {
	case "":
		f, err := os.Open(filepath.Clean(url.Path))
		if err != nil {
			return nil, fmt.Errorf("resource: %w", err)
		}
		size := int64(-1)
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		return &Resource{ReadCloser: f, url: url, size: size}, nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %w", url.String(), err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %w", url.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", url.String(), resp.StatusCode)
		}
		return &Resource{ReadCloser: resp.Body, url: url, size: resp.ContentLength}, nil
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", url.Scheme)
	}
}

// Create a resource from a reader.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	url, _ := url.Parse(name)
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        url,
		size:       -1,
	}
}
