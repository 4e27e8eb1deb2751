// Package integration holds end-to-end tests that drive the cellnote CLI
// and check its artifacts with external tooling. Every test skips itself
// when a tool it needs is not installed.
package integration

import (
	"os/exec"
	"sync"
	"testing"
)

// External tools the tests lean on.
const (
	toolUnzip   = "unzip"
	toolXMLLint = "xmllint"
	toolSQLite3 = "sqlite3"
)

// lookups caches PATH probes per command name.
var lookups sync.Map

// hasTool reports whether command is installed.
func hasTool(command string) bool {
	if hit, ok := lookups.Load(command); ok {
		return hit.(bool)
	}
	_, err := exec.LookPath(command)
	lookups.Store(command, err == nil)
	return err == nil
}

// needTool skips the test unless command is installed.
func needTool(t *testing.T, command string) {
	t.Helper()
	if !hasTool(command) {
		t.Skipf("%s not installed", command)
	}
}

// runTool runs an installed tool and returns its combined output.
func runTool(t *testing.T, command string, args ...string) (string, error) {
	t.Helper()
	needTool(t, command)
	out, err := exec.Command(command, args...).CombinedOutput()
	return string(out), err
}
