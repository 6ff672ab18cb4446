// Package httploader is the default hlswalk.Loader: plain HTTP(S) GETs,
// with an optional proxy, gzip-encoded response bodies, and a filesystem
// fallback for relative paths rooted at a configured directory.
package httploader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"hlswalk"
)

// Config configures a Loader.
type Config struct {
	// Proxy, if set, is used for every HTTP(S) request (spec.md's
	// supplemented-features section; grounded on the teacher's
	// Puller.Config.Proxy).
	Proxy string

	// RootPath is the base directory relative filesystem URIs are resolved
	// against. Defaults to the process working directory.
	RootPath string

	// Header is sent with every HTTP request, e.g. for cookies or auth
	// (grounded on the teacher's HLSPuller.TsHead).
	Header http.Header
}

// Loader implements hlswalk.Loader.
type Loader struct {
	client   *http.Client
	rootPath string
	header   http.Header
}

// New builds a Loader from cfg.
func New(cfg Config) (*Loader, error) {
	client := http.DefaultClient
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("httploader: invalid proxy: %w", err)
		}
		client = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
	}
	rootPath := cfg.RootPath
	if rootPath == "" {
		if wd, err := os.Getwd(); err == nil {
			rootPath = wd
		}
	}
	return &Loader{client: client, rootPath: rootPath, header: cfg.Header}, nil
}

// Load resolves uri to a byte payload. An http/https URI is fetched over
// the network; anything else is treated as a filesystem path, relative
// paths resolved against RootPath.
func (l *Loader) Load(ctx context.Context, uri string, opts hlswalk.LoadOptions) (hlswalk.LoadResult, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return l.loadHTTP(ctx, uri)
	}
	return l.loadFile(uri, opts.RootPath)
}

func (l *Loader) loadHTTP(ctx context.Context, uri string) (hlswalk.LoadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return hlswalk.LoadResult{}, err
	}
	for k, vs := range l.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return hlswalk.LoadResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return hlswalk.LoadResult{}, fmt.Errorf("httploader: %s: %s", uri, resp.Status)
	}

	body := resp.Body
	var reader io.Reader = body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return hlswalk.LoadResult{}, err
		}
		defer gz.Close()
		reader = gz
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return hlswalk.LoadResult{}, err
	}
	return hlswalk.LoadResult{Data: data, MimeType: resp.Header.Get("Content-Type")}, nil
}

// loadFile resolves a relative uri against requestRootPath if the caller
// supplied one (hlswalk.Options.RootPath, forwarded per request), falling
// back to the root this Loader was constructed with.
func (l *Loader) loadFile(uri, requestRootPath string) (hlswalk.LoadResult, error) {
	root := l.rootPath
	if requestRootPath != "" {
		root = requestRootPath
	}
	path := uri
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return hlswalk.LoadResult{}, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	return hlswalk.LoadResult{Data: data, MimeType: mimeType}, nil
}
