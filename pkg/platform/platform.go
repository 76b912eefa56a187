// Package platform resolves where persistent cache data lives on the host.
package platform

import (
	"os"
	"path/filepath"
)

// Namespace is the directory under the cache root that holds every named
// cache of this library.
const Namespace = "resource-cache"

// CacheRoot returns the per-user cache directory of the platform
// ($XDG_CACHE_HOME or ~/.cache on Linux, ~/Library/Caches on macOS,
// %LocalAppData% on Windows). When the platform reports none, the temporary
// directory is used.
func CacheRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return os.TempDir()
	}
	return dir
}

// NamespaceDir returns the directory of the named cache relative to a cache
// root.
func NamespaceDir(name string) string {
	return filepath.Join(Namespace, name)
}
