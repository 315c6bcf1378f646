package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tie/launcher/models"
)

const base = "https://dist.example.com/"

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		entry    models.FileEntry
		want     string
	}{
		{"mod", models.CategoryMods, models.FileEntry{Name: "a.jar", Path: "mods/a.jar"}, "mods/a.jar"},
		{"leading slash", models.CategoryMods, models.FileEntry{Name: "a.jar", Path: "/mods/a.jar"}, "mods/a.jar"},
		{"files prefix", models.CategoryMods, models.FileEntry{Name: "a.jar", Path: "files/mods/a.jar"}, "mods/a.jar"},
		{"default mods dir", models.CategoryMods, models.FileEntry{Name: "a.jar"}, "mods/a.jar"},
		{"default config dir", models.CategoryConfigs, models.FileEntry{Name: "x.toml"}, "config/x.toml"},
		{"options singleton", models.CategoryConfigs, models.FileEntry{Name: "options.txt", Path: "config/options.txt"}, "options.txt"},
		{"nested singleton", models.CategoryConfigs, models.FileEntry{Name: "servers.dat", Path: "config/foo/bar/SERVERS.DAT"}, "SERVERS.DAT"},
		{"double prefix", models.CategoryConfigs, models.FileEntry{Name: "foo.toml", Path: "config/config/modid/foo.toml"}, "config/modid/foo.toml"},
		{"files and double prefix", models.CategoryConfigs, models.FileEntry{Name: "foo.toml", Path: "/files/config/config/foo.toml"}, "config/foo.toml"},
		{"resourcepack", models.CategoryResourcePacks, models.FileEntry{Name: "p.zip", Path: "resourcepacks/p.zip"}, "resourcepacks/p.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalPath(tt.category, tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalPathUnsafe(t *testing.T) {
	_, err := LocalPath(models.CategoryMods, models.FileEntry{Name: "x", Path: "../../etc/passwd"})
	assert.True(t, errors.Is(err, models.ErrUnsafePath))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a.jar", URL("https://cdn.example.com/a.jar", "pack", base))
	assert.Equal(t, "http://cdn.example.com/a.jar", URL("http://cdn.example.com/a.jar", "pack", base))
	assert.Equal(t, "https://dist.example.com/instances/pack/mods/a.jar", URL("files/mods/a.jar", "pack", base))
	assert.Equal(t, "https://dist.example.com/instances/pack/mods/a.jar", URL("/mods/a.jar", "pack", "https://dist.example.com"))
	assert.Equal(t, "optifine:OptiFine_1.20.1_HD_U_I6.jar", URL("optifine:OptiFine_1.20.1_HD_U_I6.jar", "pack", base))
}

func TestResolveTargetOverride(t *testing.T) {
	e := models.FileEntry{
		Name:   "shader.zip",
		Path:   "shaderpacks/shader.zip",
		URL:    "shader.zip",
		SHA256: "aa",
		Target: "/custom/place/shader.zip",
	}
	a, err := Resolve(models.CategoryShaderPacks, e, "pack", base)
	require.NoError(t, err)
	assert.Equal(t, "custom/place/shader.zip", a.Path)
	assert.Equal(t, "https://dist.example.com/instances/pack/shader.zip", a.URL)
	assert.True(t, a.Required)
}

func TestResolveDeterministic(t *testing.T) {
	no := false
	entries := []models.FileEntry{
		{Name: "a.jar", Path: "mods/a.jar", URL: "mods/a.jar", SHA256: "h1"},
		{Name: "options.txt", Path: "config/options.txt", URL: "https://x/options.txt", SHA256: "h2", Required: &no},
		{Name: "foo.toml", Path: "config/config/m/foo.toml", URL: "files/config/config/m/foo.toml", SHA256: "h3", MD5: "m"},
	}
	for _, e := range entries {
		a1, err := Resolve(models.CategoryConfigs, e, "pack", base)
		require.NoError(t, err)
		a2, err := Resolve(models.CategoryConfigs, e, "pack", base)
		require.NoError(t, err)
		assert.Equal(t, a1, a2)
	}
}

func TestRequiredDefault(t *testing.T) {
	yes, no := true, false
	assert.True(t, models.FileEntry{}.IsRequired())
	assert.True(t, models.FileEntry{Required: &yes}.IsRequired())
	assert.False(t, models.FileEntry{Required: &no}.IsRequired())
}

func TestHistoryName(t *testing.T) {
	tests := []struct {
		asset models.InstanceAsset
		name  string
		ok    bool
	}{
		{models.InstanceAsset{Category: models.CategoryMods, Name: "a.jar", Path: "mods/a.jar"}, "a.jar", true},
		{models.InstanceAsset{Category: models.CategoryMods, Name: "Sodium", Path: "mods/sodium-0.5.jar"}, "sodium-0.5.jar", true},
		{models.InstanceAsset{Category: models.CategoryResourcePacks, Name: "pack.zip", Path: "resourcepacks/custom/pack.zip"}, "custom/pack.zip", true},
		{models.InstanceAsset{Category: models.CategoryMods, Name: "x.jar", Path: "extra/x.jar"}, "", false},
		{models.InstanceAsset{Category: models.CategoryConfigs, Name: "foo.toml", Path: "config/config/m/foo.toml"}, "config/m/foo.toml", true},
	}
	for _, tt := range tests {
		name, ok := HistoryName(tt.asset)
		assert.Equal(t, tt.name, name, tt.asset.Path)
		assert.Equal(t, tt.ok, ok, tt.asset.Path)
	}
	assert.True(t, IsRootFile("options.txt"))
	assert.False(t, IsRootFile("config/options.txt"))
}
