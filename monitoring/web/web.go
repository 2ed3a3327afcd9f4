// Package web holds the static page of the monitor.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

//go:embed dist/*
var dist embed.FS

// DevEnv names the variable that makes the monitor read the page from the
// source tree, so that it can be edited without rebuilding.
const DevEnv = "BBOS_MONITOR_DEV"

// AssetsBuilder decides where the page is served from.
type AssetsBuilder struct {
	dir string
}

// MakeAssetsBuilder returns a builder of the embedded page.
func MakeAssetsBuilder() AssetsBuilder {
	return AssetsBuilder{}
}

// WithDir serves the page from dir instead of the binary.
func (b AssetsBuilder) WithDir(dir string) AssetsBuilder {
	b.dir = dir
	return b
}

// WithSourceTree serves the page from the dist directory next to this file.
func (b AssetsBuilder) WithSourceTree() AssetsBuilder {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("web: source tree not found")
	}

	return b.WithDir(filepath.Join(filepath.Dir(file), "dist"))
}

// WithEnv switches to the source tree when DevEnv is set to a true value.
func (b AssetsBuilder) WithEnv() AssetsBuilder {
	if on, err := strconv.ParseBool(os.Getenv(DevEnv)); err == nil && on {
		return b.WithSourceTree()
	}

	return b
}

// Build returns the file system to serve.
func (b AssetsBuilder) Build() http.FileSystem {
	if b.dir != "" {
		slog.Info("bbos/monitoring: serving page from disk", "dir", b.dir)
		return http.Dir(b.dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}
