// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// MigrationsDir returns the absolute path of the repository migrations.
func MigrationsDir(t testing.TB) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("resolve migrations dir")
	}
	return filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
}
