// Container-level checks on saved workbooks, driven by unzip and
// xmllint so the archive and its XML parts are validated by tooling
// that shares no code with this module.
package integration

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cellnote/cellnote/core/annotate"
	"github.com/cellnote/cellnote/core/cellref"
	"github.com/cellnote/cellnote/core/xlsx"
)

// saveAnnotatedWorkbook builds a workbook with one annotated cell and
// saves it under dir.
func saveAnnotatedWorkbook(t *testing.T, dir string) string {
	t.Helper()

	wb, err := xlsx.New("Sheet1")
	if err != nil {
		t.Fatalf("create workbook: %v", err)
	}

	ref, err := cellref.Parse("A1")
	if err != nil {
		t.Fatalf("parse cell reference: %v", err)
	}

	if _, err := annotate.Apply(wb, annotate.Request{
		Cell:     ref,
		BaseText: "Total",
		Marker:   "1,2",
		SplitAt:  annotate.AtEnd,
	}); err != nil {
		t.Fatalf("annotate: %v", err)
	}

	path := filepath.Join(dir, "annotated.xlsx")
	if err := wb.Save(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestUnzipAvailable(t *testing.T) {
	out, err := runTool(t, toolUnzip, "-v")
	if err != nil {
		t.Fatalf("unzip -v: %v", err)
	}
	if !strings.Contains(out, "UnZip") && !strings.Contains(out, "Info-ZIP") {
		t.Errorf("unexpected unzip output: %s", out)
	}
}

func TestWorkbookZipIntegrity(t *testing.T) {
	path := saveAnnotatedWorkbook(t, t.TempDir())

	out, err := runTool(t, toolUnzip, "-t", path)
	if err != nil {
		t.Fatalf("unzip -t: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No errors detected") {
		t.Errorf("archive check not clean: %s", out)
	}
	if !strings.Contains(out, "xl/sharedStrings.xml") {
		t.Errorf("shared-string part missing from archive: %s", out)
	}
}

func TestXMLLintValidatesWorkbookParts(t *testing.T) {
	needTool(t, toolXMLLint)

	dir := t.TempDir()
	path := saveAnnotatedWorkbook(t, dir)

	extractDir := filepath.Join(dir, "extracted")
	if out, err := runTool(t, toolUnzip, "-o", "-d", extractDir, path); err != nil {
		t.Fatalf("unzip: %v\n%s", err, out)
	}

	var checked int
	err := filepath.WalkDir(extractDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(p, ".xml") && !strings.HasSuffix(p, ".rels") {
			return nil
		}
		if out, err := runTool(t, toolXMLLint, "--noout", p); err != nil {
			t.Errorf("part %s not well-formed: %v\n%s", p, err, out)
		}
		checked++
		return nil
	})
	if err != nil {
		t.Fatalf("walk extracted parts: %v", err)
	}
	if checked == 0 {
		t.Error("no XML parts found to validate")
	}
}

// The rich entry must be visible to an independent XPath engine, not
// just to this module's own parser.
func TestXMLLintSharedStringsXPath(t *testing.T) {
	needTool(t, toolXMLLint)

	dir := t.TempDir()
	path := saveAnnotatedWorkbook(t, dir)

	extractDir := filepath.Join(dir, "extracted")
	if out, err := runTool(t, toolUnzip, "-o", "-d", extractDir, path, "xl/sharedStrings.xml"); err != nil {
		t.Fatalf("unzip: %v\n%s", err, out)
	}

	sstPath := filepath.Join(extractDir, "xl", "sharedStrings.xml")
	out, err := runTool(t, toolXMLLint, "--xpath",
		"count(//*[local-name()='si']/*[local-name()='r'])", sstPath)
	if err != nil {
		t.Fatalf("xpath query: %v\n%s", err, out)
	}

	// One annotated cell yields one entry with three runs.
	if got := strings.TrimSpace(out); got != "3" {
		t.Errorf("run count = %s, want 3", got)
	}
}
