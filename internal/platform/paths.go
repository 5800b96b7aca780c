package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName      = "streamplayer"
	appNameTitle = "StreamPlayer"
	androidID    = "ru.akarpov.streamplayer"

	osWindows = "windows"
	osDarwin  = "darwin"
	osAndroid = "android"
)

type dirKind int

const (
	dirData dirKind = iota
	dirCache
	dirConfig
)

// GetDataDir returns where the resource database lives.
func GetDataDir() (string, error) { return resolve(dirData) }

// GetCacheDir returns where fetched resources and rendered files are kept.
func GetCacheDir() (string, error) { return resolve(dirCache) }

// GetConfigDir returns the directory searched for config.yaml.
func GetConfigDir() (string, error) { return resolve(dirConfig) }

func resolve(kind dirKind) (string, error) {
	switch runtime.GOOS {
	case osWindows:
		return windowsDir(kind), nil
	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		sub := map[dirKind]string{
			dirData:   "Application Support",
			dirCache:  "Caches",
			dirConfig: "Preferences",
		}[kind]
		return filepath.Join(home, "Library", sub, appNameTitle), nil
	case osAndroid:
		leaf := "files"
		if kind == dirCache {
			leaf = "cache"
		}
		if androidData := os.Getenv("ANDROID_DATA"); androidData != "" {
			return filepath.Join(androidData, "data", androidID, leaf), nil
		}
		return filepath.Join("/data/data", androidID, leaf), nil
	default:
		return xdgDir(kind)
	}
}

func windowsDir(kind dirKind) string {
	if kind == dirCache {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appNameTitle, "Cache")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local", appNameTitle, "Cache")
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appNameTitle)
	}
	return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", appNameTitle)
}

func xdgDir(kind dirKind) (string, error) {
	env, fallback := "XDG_DATA_HOME", filepath.Join(".local", "share")
	switch kind {
	case dirCache:
		env, fallback = "XDG_CACHE_HOME", ".cache"
	case dirConfig:
		env, fallback = "XDG_CONFIG_HOME", ".config"
	}

	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}
