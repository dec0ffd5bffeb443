package cmd

import (
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// rebuildSources are the trees compiled into bin/do. The migrate command
// embeds internal/db/migrations, so SQL files count too.
var rebuildSources = []string{"cmd/do", "internal/config", "internal/db"}

// RebuildIfStale recompiles bin/do when any of its sources is newer than the
// binary, then re-execs the fresh binary with the same arguments.
func RebuildIfStale() {
	exe, err := os.Executable()
	if err != nil || !strings.HasSuffix(filepath.ToSlash(exe), "bin/do") {
		return
	}
	info, err := os.Stat(exe)
	if err != nil {
		return
	}

	changed := newerSource(info.ModTime(), rebuildSources...)
	if changed == "" {
		return
	}

	slog.Info("rebuilding bin/do", "changed", changed)
	build := exec.Command("go", "build", "-o", exe, "./cmd/do")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	err = build.Run()
	if err != nil {
		slog.Error("rebuild failed", "error", err)
		return
	}

	err = syscall.Exec(exe, os.Args, os.Environ())
	if err != nil {
		slog.Error("re-exec failed", "error", err)
	}
}

// newerSource returns the first .go or .sql file under roots modified after
// since, or "" when the binary is up to date.
func newerSource(since time.Time, roots ...string) string {
	var found string
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case ".go", ".sql":
			default:
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.ModTime().After(since) {
				found = path
				return filepath.SkipAll
			}
			return nil
		})
		if found != "" {
			return found
		}
	}
	return ""
}
