package webproxy

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/assetcache"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Lifecycle states of the proxy. Requests are served in every state; the
// states gate precaching and old-generation cleanup.
const (
	StateNew        = "new"
	StateInstalling = "installing"
	StateInstalled  = "installed"
	StateActivated  = "activated"
)

// shellPath is the navigation fallback when the origin is unreachable.
const shellPath = "/index.html"

// Proxy serves GET requests cache-first from the asset cache and refreshes
// entries in the background. Non-GET requests pass straight through.
type Proxy struct {
	cache     *assetcache.Cache
	cacheName string
	upstream  http.RoundTripper

	mu    sync.RWMutex
	state string

	// refresh is waited on by tests; background refreshes register here.
	refresh sync.WaitGroup
}

func New(cache *assetcache.Cache, cacheName string, upstream http.RoundTripper) *Proxy {
	return &Proxy{
		cache:     cache,
		cacheName: cacheName,
		upstream:  upstream,
		state:     StateNew,
	}
}

func (p *Proxy) State() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Proxy) setState(state string) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	log.Debug("Asset proxy is now %s", state)
}

// Install precaches the manifest. All paths must fetch successfully or the
// install fails and the proxy stays in its prior state with nothing stored.
func (p *Proxy) Install(ctx context.Context, manifest []string) error {
	p.setState(StateInstalling)

	entries := make(map[string]assetcache.Entry, len(manifest))
	for _, path := range manifest {
		entry, err := p.fetch(ctx, path)
		if err != nil {
			p.setState(StateNew)
			return err
		}
		if entry.Status != http.StatusOK {
			p.setState(StateNew)
			return apperr.New(apperr.ErrNetwork, "precache fetch failed").
				WithContext("path", path).
				WithContext("status", entry.Status)
		}
		entries[path] = entry
	}

	for path, entry := range entries {
		if err := p.cache.Put(ctx, p.cacheName, path, entry); err != nil {
			p.setState(StateNew)
			return err
		}
	}

	p.setState(StateInstalled)
	log.Info("Precached %d asset(s) into %s", len(entries), p.cacheName)
	return nil
}

// Activate drops every cache generation except the current one.
func (p *Proxy) Activate(ctx context.Context) error {
	if _, err := p.cache.DeleteOthers(ctx, p.cacheName); err != nil {
		return err
	}
	p.setState(StateActivated)
	return nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		p.passthrough(w, r)
		return
	}

	key := cacheKey(r)
	entry, ok, err := p.cache.Match(r.Context(), p.cacheName, key)
	if err != nil {
		log.Error("Asset cache lookup failed for %s: %v", key, err)
	}
	if ok {
		writeEntry(w, entry)
		p.refreshInBackground(key)
		return
	}

	fresh, err := p.fetch(r.Context(), key)
	if err != nil {
		if isNavigation(r) {
			if shell, ok, shellErr := p.cache.Match(r.Context(), p.cacheName, shellPath); shellErr == nil && ok {
				writeEntry(w, shell)
				return
			}
		}
		http.Error(w, "origin unreachable", http.StatusGatewayTimeout)
		return
	}

	if fresh.Status == http.StatusOK {
		if err := p.cache.Put(r.Context(), p.cacheName, key, fresh); err != nil {
			log.Error("Failed to cache %s: %v", key, err)
		}
	}
	writeEntry(w, fresh)
}

// refreshInBackground refetches a served entry so the cache converges on
// the latest content. Failures are swallowed: the user already has a
// response.
func (p *Proxy) refreshInBackground(key string) {
	p.refresh.Add(1)
	go func() {
		defer p.refresh.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		entry, err := p.fetch(ctx, key)
		if err != nil || entry.Status != http.StatusOK {
			return
		}
		if err := p.cache.Put(ctx, p.cacheName, key, entry); err != nil {
			log.Debug("Background refresh of %s not stored: %v", key, err)
		}
	}()
}

// WaitRefresh blocks until in-flight background refreshes finish.
func (p *Proxy) WaitRefresh() {
	p.refresh.Wait()
}

func (p *Proxy) fetch(ctx context.Context, path string) (assetcache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return assetcache.Entry{}, apperr.Wrap(err, apperr.ErrUnknown, "build asset request").WithContext("path", path)
	}
	resp, err := p.upstream.RoundTrip(req)
	if err != nil {
		return assetcache.Entry{}, apperr.Wrap(err, apperr.ErrNetwork, "fetch asset").WithContext("path", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return assetcache.Entry{}, apperr.Wrap(err, apperr.ErrNetwork, "read asset body").WithContext("path", path)
	}
	return assetcache.Entry{
		Status:    resp.StatusCode,
		Header:    resp.Header.Clone(),
		Body:      body,
		FetchedAt: time.Now(),
	}, nil
}

func (p *Proxy) passthrough(w http.ResponseWriter, r *http.Request) {
	resp, err := p.upstream.RoundTrip(r)
	if err != nil {
		http.Error(w, "origin unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Debug("Passthrough copy interrupted: %v", err)
	}
}

func writeEntry(w http.ResponseWriter, entry assetcache.Entry) {
	copyHeader(w.Header(), entry.Header)
	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(entry.Body)
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// cacheKey is the full request path including the query string, so
// /data/x?v=1 and /data/x?v=2 are distinct entries.
func cacheKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
