package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/models"
	"github.com/tie/launcher/progress"
	"github.com/tie/launcher/retry"
	"github.com/tie/launcher/verify"
)

type mojang struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string][]byte
	hits   map[string]int
}

func newMojang(t *testing.T) *mojang {
	t.Helper()
	m := &mojang{routes: make(map[string][]byte), hits: make(map[string]int)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits[r.URL.Path]++
		body, ok := m.routes[r.URL.Path]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mojang) handle(p string, body []byte) {
	m.mu.Lock()
	m.routes[p] = body
	m.mu.Unlock()
}

func (m *mojang) count(p string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[p]
}

func newResolver(t *testing.T, fs billy.Filesystem, m *mojang, opts ...func(*Config)) *Resolver {
	t.Helper()
	cfg := Config{
		Files: fs,
		Fetcher: &fetcher.Fetcher{
			Client: m.Client(),
			Retry: retry.Policy{
				Attempts: 2,
				Sleep:    func(context.Context, time.Duration) error { return nil },
			},
		},
		URLs: URLs{
			VersionManifest: m.URL + "/mc/game/version_manifest_v2.json",
			Resources:       m.URL + "/resources",
			Libraries:       m.URL + "/libraries",
		},
		OS: OSLinux,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewResolver(cfg)
}

func writeJSON(t *testing.T, fs billy.Basic, p string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, p, data, 0644))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestAllowed(t *testing.T) {
	allowAll := Rule{Action: "allow"}
	denyMac := Rule{Action: "disallow", OS: &OSRule{Name: OSMac}}
	onlyMac := Rule{Action: "allow", OS: &OSRule{Name: OSMac}}

	tests := []struct {
		name  string
		rules []Rule
		os    string
		want  bool
	}{
		{"no rules", nil, OSLinux, true},
		{"allow then deny mac on linux", []Rule{allowAll, denyMac}, OSLinux, true},
		{"allow then deny mac on mac", []Rule{allowAll, denyMac}, OSMac, false},
		{"only mac on linux", []Rule{onlyMac}, OSLinux, false},
		{"only mac on mac", []Rule{onlyMac}, OSMac, true},
		{"deny mac then allow all", []Rule{denyMac, allowAll}, OSMac, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.rules, tt.os))
		})
	}
}

func TestCurrentOS(t *testing.T) {
	assert.Contains(t, []string{OSWindows, OSMac, OSLinux}, CurrentOS())
}

func TestMavenPath(t *testing.T) {
	tests := []struct {
		coords string
		want   string
	}{
		{"net.fabricmc:fabric-loader:0.15.11", "net/fabricmc/fabric-loader/0.15.11/fabric-loader-0.15.11.jar"},
		{"org.lwjgl:lwjgl:3.3.1:natives-linux", "org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-linux.jar"},
		{"de.oceanlabs.mcp:mcp_config:1.20.1@zip", "de/oceanlabs/mcp/mcp_config/1.20.1/mcp_config-1.20.1.zip"},
	}
	for _, tt := range tests {
		got, err := MavenPath(tt.coords)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "a:b", "a::c", "a:b:c:d:e"} {
		_, err := MavenPath(bad)
		assert.Error(t, err, bad)
	}
}

func TestMergeLibraries(t *testing.T) {
	vanilla := []Library{
		{Name: "org.ow2.asm:asm:9.3"},
		{Name: "com.mojang:brigadier:1.0.18"},
		{Name: "org.lwjgl:lwjgl:3.3.1:natives-linux"},
	}
	loader := []Library{
		{Name: "org.ow2.asm:asm:9.6", URL: "https://maven.fabricmc.net/"},
		{Name: "net.fabricmc:fabric-loader:0.15.11", URL: "https://maven.fabricmc.net/"},
		{Name: "org.lwjgl:lwjgl:3.3.1"},
	}

	merged := MergeLibraries(vanilla, loader)
	var names []string
	for _, l := range merged {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{
		"org.ow2.asm:asm:9.6",
		"com.mojang:brigadier:1.0.18",
		"org.lwjgl:lwjgl:3.3.1:natives-linux",
		"net.fabricmc:fabric-loader:0.15.11",
		"org.lwjgl:lwjgl:3.3.1",
	}, names)
}

func TestEnsureAssetsDedupsObjects(t *testing.T) {
	m := newMojang(t)
	fs := memfs.New()

	sound := []byte("ogg data")
	lang := []byte("{}")
	present := []byte("already here")
	soundHash := verify.Digest(verify.SHA1, sound)
	langHash := verify.Digest(verify.SHA1, lang)
	presentHash := verify.Digest(verify.SHA1, present)

	index := mustJSON(t, AssetIndex{Objects: map[string]AssetObject{
		"minecraft/sounds/a.ogg":  {Hash: soundHash, Size: int64(len(sound))},
		"minecraft/sounds/b.ogg":  {Hash: soundHash, Size: int64(len(sound))},
		"minecraft/lang/en.json":  {Hash: langHash, Size: int64(len(lang))},
		"minecraft/icons/app.png": {Hash: presentHash, Size: int64(len(present))},
	}})
	m.handle("/indexes/5.json", index)
	m.handle("/resources/"+soundHash[:2]+"/"+soundHash, sound)
	m.handle("/resources/"+langHash[:2]+"/"+langHash, lang)

	writeJSON(t, fs, VersionPath("1.20.1"), VersionDescriptor{
		ID: "1.20.1",
		AssetIndex: &AssetIndexRef{
			ID:   "5",
			URL:  m.URL + "/indexes/5.json",
			SHA1: verify.Digest(verify.SHA1, index),
		},
	})
	require.NoError(t, util.WriteFile(fs, ObjectPath(presentHash), present, 0644))

	rec := &progress.Recorder{}
	r := newResolver(t, fs, m, func(c *Config) { c.Progress = rec })
	id, err := r.EnsureAssets(context.Background(), "1.20.1")
	require.NoError(t, err)
	assert.Equal(t, "5", id)

	assert.Equal(t, 1, m.count("/resources/"+soundHash[:2]+"/"+soundHash))
	assert.Equal(t, 1, m.count("/resources/"+langHash[:2]+"/"+langHash))
	assert.Zero(t, m.count("/resources/"+presentHash[:2]+"/"+presentHash))

	_, err = fs.Stat(IndexPath("5"))
	assert.NoError(t, err)
	_, err = fs.Stat(ObjectPath(soundHash))
	assert.NoError(t, err)

	events := rec.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, progress.StatusCompleted, last.Status)
	assert.Equal(t, int64(2), last.Total)

	n, err := r.CountMissingAssets(context.Background(), "1.20.1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnsureAssetsCountedSharesCounter(t *testing.T) {
	m := newMojang(t)
	fs := memfs.New()

	obj := []byte("texture")
	hash := verify.Digest(verify.SHA1, obj)
	index := mustJSON(t, AssetIndex{Objects: map[string]AssetObject{
		"minecraft/textures/x.png": {Hash: hash, Size: int64(len(obj))},
	}})
	m.handle("/indexes/8.json", index)
	m.handle("/resources/"+hash[:2]+"/"+hash, obj)
	writeJSON(t, fs, VersionPath("1.21"), VersionDescriptor{
		ID:         "1.21",
		AssetIndex: &AssetIndexRef{ID: "8", URL: m.URL + "/indexes/8.json"},
	})

	r := newResolver(t, fs, m)
	var counter atomic.Int64
	counter.Store(10)
	_, err := r.EnsureAssetsCounted(context.Background(), "1.21", &counter, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), counter.Load())
}

func TestEnsureAssetsRejectsCorruptObject(t *testing.T) {
	m := newMojang(t)
	fs := memfs.New()

	hash := verify.Digest(verify.SHA1, []byte("good"))
	m.handle("/indexes/1.json", mustJSON(t, AssetIndex{Objects: map[string]AssetObject{
		"a": {Hash: hash},
	}}))
	m.handle("/resources/"+hash[:2]+"/"+hash, []byte("bad"))
	writeJSON(t, fs, VersionPath("1.0"), VersionDescriptor{
		ID:         "1.0",
		AssetIndex: &AssetIndexRef{ID: "1", URL: m.URL + "/indexes/1.json"},
	})

	_, err := newResolver(t, fs, m).EnsureAssets(context.Background(), "1.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrChecksumMismatch))
	_, err = fs.Stat(ObjectPath(hash))
	assert.Error(t, err)
}

func TestEnsureAssetsVersionNotInstalled(t *testing.T) {
	_, err := newResolver(t, memfs.New(), newMojang(t)).EnsureAssets(context.Background(), "1.0")
	assert.True(t, errors.Is(err, models.ErrVersionNotInstalled))
}

func TestEnsureLibraries(t *testing.T) {
	m := newMojang(t)
	fs := memfs.New()

	guava := []byte("guava")
	loaderJar := []byte("fabric loader")
	m.handle("/libraries/com/google/guava/guava/32.1.2/guava-32.1.2.jar", guava)
	m.handle("/fabric/net/fabricmc/fabric-loader/0.15.11/fabric-loader-0.15.11.jar", loaderJar)

	vanilla := &VersionDescriptor{
		ID: "1.20.1",
		Libraries: []Library{
			{
				Name: "com.google.guava:guava:32.1.2",
				Downloads: &LibraryDownloads{Artifact: &Artifact{
					Path: "com/google/guava/guava/32.1.2/guava-32.1.2.jar",
					URL:  m.URL + "/libraries/com/google/guava/guava/32.1.2/guava-32.1.2.jar",
					SHA1: verify.Digest(verify.SHA1, guava),
				}},
			},
			{
				Name:  "ca.weblite:java-objc-bridge:1.1",
				Rules: []Rule{{Action: "allow", OS: &OSRule{Name: OSMac}}},
				Downloads: &LibraryDownloads{Artifact: &Artifact{
					Path: "ca/weblite/java-objc-bridge/1.1/java-objc-bridge-1.1.jar",
					URL:  m.URL + "/libraries/objc.jar",
				}},
			},
		},
	}
	fabric := &VersionDescriptor{
		ID:           "fabric-loader-0.15.11-1.20.1",
		InheritsFrom: "1.20.1",
		Libraries: []Library{
			{Name: "net.fabricmc:fabric-loader:0.15.11", URL: m.URL + "/fabric/"},
		},
	}

	r := newResolver(t, fs, m)
	require.NoError(t, r.EnsureLibraries(context.Background(), vanilla, fabric))

	_, err := fs.Stat("libraries/com/google/guava/guava/32.1.2/guava-32.1.2.jar")
	assert.NoError(t, err)
	_, err = fs.Stat("libraries/net/fabricmc/fabric-loader/0.15.11/fabric-loader-0.15.11.jar")
	assert.NoError(t, err)
	assert.Zero(t, m.count("/libraries/objc.jar"), "osx only library is skipped on linux")

	require.NoError(t, r.EnsureLibraries(context.Background(), vanilla, fabric))
	assert.Equal(t, 1, m.count("/libraries/com/google/guava/guava/32.1.2/guava-32.1.2.jar"))
}

func TestLibrariesAndAssetsShareCounter(t *testing.T) {
	m := newMojang(t)
	fs := memfs.New()

	lib := []byte("lwjgl")
	m.handle("/libraries/org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1.jar", lib)
	obj := []byte("texture")
	hash := verify.Digest(verify.SHA1, obj)
	m.handle("/indexes/8.json", mustJSON(t, AssetIndex{Objects: map[string]AssetObject{
		"minecraft/textures/x.png": {Hash: hash, Size: int64(len(obj))},
	}}))
	m.handle("/resources/"+hash[:2]+"/"+hash, obj)

	v := &VersionDescriptor{
		ID:         "1.21",
		Libraries:  []Library{{Name: "org.lwjgl:lwjgl:3.3.1", SHA1: verify.Digest(verify.SHA1, lib)}},
		AssetIndex: &AssetIndexRef{ID: "8", URL: m.URL + "/indexes/8.json"},
	}
	writeJSON(t, fs, VersionPath("1.21"), v)

	rec := &progress.Recorder{}
	r := newResolver(t, fs, m, func(c *Config) { c.Progress = rec })
	ctx := context.Background()

	libs, err := r.CountMissingLibraries(v, nil)
	require.NoError(t, err)
	assets, err := r.CountMissingAssets(ctx, "1.21")
	require.NoError(t, err)
	total := libs + assets
	assert.Equal(t, int64(2), total)

	var counter atomic.Int64
	require.NoError(t, r.EnsureLibrariesCounted(ctx, v, nil, &counter, total))
	assert.Equal(t, int64(1), counter.Load())
	_, err = r.EnsureAssetsCounted(ctx, "1.21", &counter, total)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counter.Load())

	for _, e := range rec.Events() {
		assert.Equal(t, total, e.Total, e.Phase)
	}
	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, total, last.Current)

	libs, err = r.CountMissingLibraries(v, nil)
	require.NoError(t, err)
	assert.Zero(t, libs)
}

func TestEnsureClient(t *testing.T) {
	m := newMojang(t)
	fs := memfs.New()

	jar := []byte("client jar")
	desc := mustJSON(t, VersionDescriptor{
		ID:        "1.20.1",
		MainClass: "net.minecraft.client.main.Main",
		Downloads: Downloads{Client: &Artifact{
			URL:  m.URL + "/v1/objects/client.jar",
			SHA1: verify.Digest(verify.SHA1, jar),
			Size: int64(len(jar)),
		}},
	})
	manifest := VersionManifest{Versions: []VersionRef{
		{ID: "1.20.1", Type: "release", URL: m.URL + "/v1/packages/1.20.1.json", SHA1: verify.Digest(verify.SHA1, desc)},
	}}
	m.handle("/mc/game/version_manifest_v2.json", mustJSON(t, manifest))
	m.handle("/v1/packages/1.20.1.json", desc)
	m.handle("/v1/objects/client.jar", jar)

	r := newResolver(t, fs, m)
	v, err := r.EnsureClient(context.Background(), "1.20.1")
	require.NoError(t, err)
	assert.Equal(t, "net.minecraft.client.main.Main", v.MainClass)

	_, err = fs.Stat(ClientPath("1.20.1"))
	require.NoError(t, err)

	_, err = r.EnsureClient(context.Background(), "1.20.1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.count("/mc/game/version_manifest_v2.json"))
	assert.Equal(t, 1, m.count("/v1/objects/client.jar"))
}

func TestEnsureClientUnknownVersion(t *testing.T) {
	m := newMojang(t)
	m.handle("/mc/game/version_manifest_v2.json", mustJSON(t, VersionManifest{}))

	_, err := newResolver(t, memfs.New(), m).EnsureClient(context.Background(), "0.0.1")
	assert.True(t, errors.Is(err, models.ErrVersionNotFound))
}
