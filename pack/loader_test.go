package pack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tie/launcher/cache"
	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/models"
	"github.com/tie/launcher/retry"
)

const distribution = `{
  "name": "Example",
  "version": "1",
  "base_url": "%s",
  "instances": [
    {"id": "survival", "name": "Survival"},
    {"id": "creative", "manifest_url": "custom/creative.json"}
  ]
}`

const instance = `{
  "instance": {"id": "survival", "minecraft_version": "1.20.1",
    "mod_loader": {"type": "fabric", "version": "0.15.11"}},
  "files": {
    "mods": [{"name": "a.jar", "url": "mods/a.jar",
      "sha256": "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"}],
    "configs": []
  }
}`

type handler struct {
	routes map[string]string
	hits   atomic.Int64
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hits.Add(1)
	body, ok := h.routes[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func setup(t *testing.T, routes map[string]string, c *cache.TTL[string, []byte]) (*Loader, *handler, string) {
	t.Helper()
	h := &handler{routes: routes}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	for k, v := range routes {
		routes[k] = strings.ReplaceAll(v, "%s", srv.URL)
	}
	l := NewLoader(Config{
		Fetcher: &fetcher.Fetcher{
			Client: srv.Client(),
			Retry: retry.Policy{
				Attempts: 3,
				Sleep:    func(context.Context, time.Duration) error { return nil },
			},
		},
		Cache: c,
	})
	return l, h, srv.URL
}

func TestLoadDistributionAndInstance(t *testing.T) {
	l, _, base := setup(t, map[string]string{
		"/distribution.json":                distribution,
		"/instances/survival/manifest.json": instance,
	}, nil)

	d, err := l.Distribution(context.Background(), base+"/distribution.json")
	require.NoError(t, err)
	assert.Equal(t, "Example", d.Name)
	require.Len(t, d.Instances, 2)

	m, err := l.Instance(context.Background(), d, "survival")
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", m.Instance.MinecraftVersion)
	require.NotNil(t, m.Instance.ModLoader)
	assert.Equal(t, "fabric", m.Instance.ModLoader.Type)
	require.Len(t, m.Files.Mods, 1)
	assert.True(t, m.Files.Mods[0].IsRequired())
}

func TestInstanceNotFound(t *testing.T) {
	l, _, base := setup(t, map[string]string{"/d.json": distribution}, nil)
	d, err := l.Distribution(context.Background(), base+"/d.json")
	require.NoError(t, err)

	_, err = l.Instance(context.Background(), d, "hardcore")
	assert.True(t, errors.Is(err, models.ErrInstanceNotFound))
}

func TestInvalidManifest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"instance": `},
		{"missing minecraft version", `{"instance": {"id": "x"}, "files": {"mods": [], "configs": []}}`},
		{"missing mods", `{"instance": {"id": "x", "minecraft_version": "1.20.1"}, "files": {"configs": []}}`},
		{"bad hash", `{"instance": {"id": "x", "minecraft_version": "1.20.1"},
			"files": {"mods": [{"name": "a", "url": "a", "sha256": "zz"}], "configs": []}}`},
		{"unknown loader", `{"instance": {"id": "x", "minecraft_version": "1.20.1",
			"mod_loader": {"type": "rift", "version": "1"}}, "files": {"mods": [], "configs": []}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, base := setup(t, map[string]string{
				"/d.json":                           distribution,
				"/instances/survival/manifest.json": tt.body,
			}, nil)
			d, err := l.Distribution(context.Background(), base+"/d.json")
			require.NoError(t, err)
			_, err = l.Instance(context.Background(), d, "survival")
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidManifest))
		})
	}
}

func TestInvalidDistribution(t *testing.T) {
	l, _, base := setup(t, map[string]string{"/d.json": `{"name": "x"}`}, nil)
	_, err := l.Distribution(context.Background(), base+"/d.json")
	assert.True(t, errors.Is(err, models.ErrInvalidManifest))
}

func TestDistributionNotFoundIsNotRetried(t *testing.T) {
	l, h, base := setup(t, map[string]string{}, nil)
	_, err := l.Distribution(context.Background(), base+"/d.json")
	require.Error(t, err)
	var herr *fetcher.HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusNotFound, herr.Status)
	assert.Equal(t, int64(1), h.hits.Load())
}

func TestLoaderCache(t *testing.T) {
	c, err := cache.New[string, []byte](cache.Config{})
	require.NoError(t, err)
	l, h, base := setup(t, map[string]string{"/d.json": distribution}, c)

	for i := 0; i < 3; i++ {
		_, err := l.Distribution(context.Background(), base+"/d.json")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.hits.Load())
}

func TestManifestURL(t *testing.T) {
	base := "https://example.com/dist/"
	tests := []struct {
		summary models.InstanceSummary
		want    string
	}{
		{models.InstanceSummary{ID: "a"}, "https://example.com/dist/instances/a/manifest.json"},
		{models.InstanceSummary{ID: "a", ManifestURL: "/x/a.json"}, "https://example.com/dist/x/a.json"},
		{models.InstanceSummary{ID: "a", ManifestURL: "https://cdn.example.com/a.json"}, "https://cdn.example.com/a.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ManifestURL(base, tt.summary))
	}
}
