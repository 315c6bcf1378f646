package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/tie/launcher/fetcher"
)

// Flavor describes where an installer-jar based loader publishes its
// installers and which version id they produce.
type Flavor struct {
	Name     string
	MavenURL string

	// Artifact returns the repository path of the installer jar.
	Artifact func(mcVersion, loaderVersion string) string

	// VersionID returns the id the installer writes.
	VersionID func(mcVersion, loaderVersion string) string
}

var Forge = Flavor{
	Name:     TypeForge,
	MavenURL: "https://maven.minecraftforge.net",
	Artifact: func(mc, v string) string {
		full := mc + "-" + v
		return fmt.Sprintf("net/minecraftforge/forge/%s/forge-%s-installer.jar", full, full)
	},
	VersionID: func(mc, v string) string {
		return mc + "-forge-" + v
	},
}

var NeoForge = Flavor{
	Name:     TypeNeoForge,
	MavenURL: "https://maven.neoforged.net/releases",
	Artifact: func(_, v string) string {
		return fmt.Sprintf("net/neoforged/neoforge/%s/neoforge-%s-installer.jar", v, v)
	},
	VersionID: func(_, v string) string {
		return "neoforge-" + v
	},
}

// LauncherProfiles is created when absent. Installers refuse to run without
// it.
const LauncherProfiles = "launcher_profiles.json"

const launcherProfilesStub = `{"profiles":{}}` + "\n"

// JarInstaller downloads a loader installer jar and runs it in client mode
// against the game directory.
type JarInstaller struct {
	Flavor  Flavor
	Fetcher *fetcher.Fetcher
	Cache   billy.Filesystem
	Java    string
	Runner  Runner
	Logger  *slog.Logger
}

func newJar(f Flavor, opts Options) *JarInstaller {
	j := &JarInstaller{
		Flavor:  f,
		Fetcher: opts.Fetcher,
		Cache:   opts.Cache,
		Java:    opts.Java,
		Runner:  opts.Runner,
		Logger:  opts.Logger,
	}
	if j.Cache == nil {
		j.Cache = memfs.New()
	}
	if j.Java == "" {
		j.Java = "java"
	}
	if j.Runner == nil {
		j.Runner = ExecRunner{}
	}
	return j
}

func (j *JarInstaller) Install(ctx context.Context, fs billy.Filesystem, mcVersion, loaderVersion string) (string, error) {
	id := j.Flavor.VersionID(mcVersion, loaderVersion)
	ok, err := installed(fs, id)
	if err != nil || ok {
		return id, err
	}

	jar := path.Join("installers", path.Base(j.Flavor.Artifact(mcVersion, loaderVersion)))
	if _, err := j.Cache.Stat(jar); errors.Is(err, os.ErrNotExist) {
		u := strings.TrimRight(j.Flavor.MavenURL, "/") + "/" + j.Flavor.Artifact(mcVersion, loaderVersion)
		if err := j.Fetcher.WithFiles(j.Cache).FetchWithRetry(ctx, u, jar); err != nil {
			return "", fmt.Errorf("%s installer: %w", j.Flavor.Name, err)
		}
	} else if err != nil {
		return "", err
	}

	if _, err := fs.Stat(LauncherProfiles); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(fs, LauncherProfiles, []byte(launcherProfilesStub), j.logger()); err != nil {
			return "", fmt.Errorf("write %s: %w", LauncherProfiles, err)
		}
	} else if err != nil {
		return "", err
	}

	// The installer runs inside gameDir, so neither path may be relative.
	gameDir, err := filepath.Abs(fs.Root())
	if err != nil {
		return "", err
	}
	jarPath, err := filepath.Abs(filepath.Join(j.Cache.Root(), filepath.FromSlash(jar)))
	if err != nil {
		return "", err
	}
	j.logger().Info("running mod loader installer",
		"type", j.Flavor.Name,
		"installer", jarPath,
		"dir", gameDir)
	out, err := j.Runner.Run(ctx, gameDir, j.Java, "-jar", jarPath, "--installClient", gameDir)
	if err != nil {
		return "", fmt.Errorf("%s installer: %w: %s", j.Flavor.Name, err, tail(out, 2048))
	}

	ok, err = installed(fs, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s installer did not produce version %s", j.Flavor.Name, id)
	}
	j.logger().Info("installed mod loader",
		"type", j.Flavor.Name,
		"version", id)
	return id, nil
}

func (j *JarInstaller) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// tail returns at most the last n bytes of out.
func tail(out []byte, n int) string {
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return strings.TrimSpace(string(out))
}
