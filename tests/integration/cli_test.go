// End-to-end tests for the cellnote CLI. They exercise the built binary
// rather than the library, so flag parsing, exit codes, and output
// formatting are all under test.
package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// findBinary locates the cellnote binary once per test run: a local
// build first, then PATH.
var findBinary = sync.OnceValues(func() (string, error) {
	for _, p := range []string{
		"../../cmd/cellnote/cellnote",
		"./cmd/cellnote/cellnote",
		"cellnote",
	} {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}
	return exec.LookPath("cellnote")
})

// cliRun holds the observable result of one CLI invocation.
type cliRun struct {
	stdout string
	stderr string
	code   int
}

// cellnote runs the CLI with args in dir. An empty dir inherits the test
// working directory.
func cellnote(t *testing.T, dir string, args ...string) cliRun {
	t.Helper()

	bin, err := findBinary()
	if err != nil {
		t.Skip("cellnote binary not found - run 'go build ./cmd/cellnote' first")
	}

	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var code int
	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("run cellnote: %v", err)
		}
		code = exitErr.ExitCode()
	}

	return cliRun{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func TestCLIVersion(t *testing.T) {
	res := cellnote(t, "", "version")
	if res.code != 0 {
		t.Errorf("exit code = %d, want 0", res.code)
	}
	if !strings.Contains(res.stdout, "cellnote version") {
		t.Errorf("version output = %q", res.stdout)
	}
}

func TestCLIHelp(t *testing.T) {
	res := cellnote(t, "", "--help")
	if res.code != 0 {
		t.Errorf("exit code = %d, want 0", res.code)
	}
	for _, command := range []string{"annotate", "compose", "inspect", "restore"} {
		if !strings.Contains(strings.ToLower(res.stdout), command) {
			t.Errorf("help output lacks %q", command)
		}
	}
}

func TestCLICompose(t *testing.T) {
	res := cellnote(t, "", "compose", "--text", "Total", "--marker", "1,2")
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.code, res.stderr)
	}
	for _, want := range []string{"<si>", "vertAlign", `val="superscript"`, "Total", "1,2"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("markup lacks %q: %s", want, res.stdout)
		}
	}
}

func TestCLIComposeHTML(t *testing.T) {
	res := cellnote(t, "", "compose", "--text", "Total", "--marker", "1", "--html")
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "<sup") {
		t.Errorf("HTML preview lacks a <sup> element: %s", res.stdout)
	}
}

func TestCLILedgerInfo(t *testing.T) {
	res := cellnote(t, "", "ledger", "info")
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "Driver:") {
		t.Errorf("driver info missing: %s", res.stdout)
	}
}

func TestCLINewWorkbook(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fresh.xlsx")

	res := cellnote(t, "", "new", out, "--sheet", "Figures")
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "Created:") {
		t.Errorf("creation message missing: %s", res.stdout)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}

	res = cellnote(t, "", "inspect", "sheets", out)
	if res.code != 0 {
		t.Fatalf("inspect sheets exit code = %d, stderr: %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "Figures") {
		t.Errorf("sheet list lacks Figures: %s", res.stdout)
	}
}

func TestCLIInvalidCommand(t *testing.T) {
	res := cellnote(t, "", "invalid-command-that-does-not-exist")
	if res.code == 0 {
		t.Error("invalid command exited 0")
	}
	if res.stderr == "" {
		t.Error("invalid command produced no error output")
	}
}

func TestCLIMissingRequiredFlag(t *testing.T) {
	res := cellnote(t, "", "compose")
	if res.code == 0 {
		t.Error("compose without flags exited 0")
	}
	if !strings.Contains(res.stderr, "missing") && !strings.Contains(res.stderr, "required") {
		t.Logf("error does not mention missing flags: %s", res.stderr)
	}
}

func TestCLIInvalidCellReference(t *testing.T) {
	workbook := filepath.Join(t.TempDir(), "book.xlsx")
	if res := cellnote(t, "", "new", workbook); res.code != 0 {
		t.Fatalf("new failed: %s", res.stderr)
	}

	res := cellnote(t, "", "annotate", workbook,
		"--cell", "1A", "--text", "Total", "--marker", "1")
	if res.code == 0 {
		t.Error("malformed cell reference exited 0")
	}
	if !strings.Contains(res.stderr, "cell reference") {
		t.Logf("error does not mention the cell reference: %s", res.stderr)
	}
}

// The full workflow: create a workbook, annotate a cell in place,
// inspect the shared strings, then restore the pre-annotation snapshot.
func TestCLIWorkflowEnd2End(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	dir := t.TempDir()
	workbook := filepath.Join(dir, "report.xlsx")

	if res := cellnote(t, "", "new", workbook); res.code != 0 {
		t.Fatalf("new failed: %s", res.stderr)
	}

	// Default config snapshots the workbook before rewriting it.
	res := cellnote(t, dir, "annotate", workbook,
		"--cell", "B2", "--text", "Grand Total", "--marker", "1,3")
	if res.code != 0 {
		t.Fatalf("annotate failed: %s", res.stderr)
	}
	if !strings.Contains(res.stdout, "Annotated:") {
		t.Errorf("annotate confirmation missing: %s", res.stdout)
	}
	if !strings.Contains(res.stdout, "Grand Total1,3") {
		t.Errorf("flattened cell text missing: %s", res.stdout)
	}

	backups, err := filepath.Glob(workbook + ".*.bak.*")
	if err != nil || len(backups) == 0 {
		t.Fatalf("no backup snapshot next to %s, found %v", workbook, backups)
	}

	res = cellnote(t, "", "inspect", "strings", workbook, "--rich")
	if res.code != 0 {
		t.Fatalf("inspect strings failed: %s", res.stderr)
	}
	if !strings.Contains(res.stdout, "Grand Total") {
		t.Errorf("rich entry missing from pool listing: %s", res.stdout)
	}

	restored := filepath.Join(dir, "restored.xlsx")
	if res := cellnote(t, "", "restore", backups[0], "--out", restored); res.code != 0 {
		t.Fatalf("restore failed: %s", res.stderr)
	}
	if _, err := os.Stat(restored); err != nil {
		t.Fatalf("restored workbook not written: %v", err)
	}

	res = cellnote(t, "", "inspect", "strings", restored, "--rich")
	if res.code != 0 {
		t.Fatalf("inspect strings on restored workbook failed: %s", res.stderr)
	}
	if strings.Contains(res.stdout, "Grand Total") {
		t.Errorf("restored workbook should predate the annotation: %s", res.stdout)
	}
}

func TestCLIAnnotateDryRun(t *testing.T) {
	workbook := filepath.Join(t.TempDir(), "book.xlsx")
	if res := cellnote(t, "", "new", workbook); res.code != 0 {
		t.Fatalf("new failed: %s", res.stderr)
	}

	before, err := os.ReadFile(workbook)
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}

	res := cellnote(t, "", "annotate", workbook,
		"--cell", "A1", "--text", "Total", "--marker", "2", "--dry-run")
	if res.code != 0 {
		t.Fatalf("dry run failed: %s", res.stderr)
	}
	if !strings.Contains(res.stdout, "<si>") {
		t.Errorf("composed markup missing from dry-run output: %s", res.stdout)
	}

	after, err := os.ReadFile(workbook)
	if err != nil {
		t.Fatalf("re-read workbook: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("dry run modified the workbook")
	}
}
