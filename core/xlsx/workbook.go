// Package xlsx reads and writes xlsx workbook containers at the part level.
//
// A workbook is a zip archive of XML parts. The package keeps every part as
// raw bytes and reserializes only the parts it touched, so content it does
// not understand survives a round trip unchanged.
package xlsx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/cellnote/cellnote/core/encoding"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/sst"
	"github.com/cellnote/cellnote/core/xmldoc"
	"github.com/cellnote/cellnote/internal/logging"
	"github.com/cellnote/cellnote/internal/validation"
)

// sheetInfo resolves a sheet name to its worksheet part.
type sheetInfo struct {
	Name string
	Path string
}

// Workbook is an xlsx container held fully in memory.
// It is not safe for concurrent use; callers serialize access.
type Workbook struct {
	parts map[string][]byte
	order []string
	dirty map[string]bool

	sheets []sheetInfo
	pool   *sst.Pool
}

// New creates a minimal single-sheet workbook. An empty sheetName defaults
// to "Sheet1".
func New(sheetName string) (*Workbook, error) {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	if err := validation.ValidateSheetName(sheetName); err != nil {
		return nil, err
	}

	wb := &Workbook{
		parts: make(map[string][]byte),
		dirty: make(map[string]bool),
	}
	wb.setPart(partContentTypes, []byte(contentTypesTemplate))
	wb.setPart(partRootRels, []byte(rootRelsTemplate))
	wb.setPart(partWorkbook, []byte(fmt.Sprintf(workbookTemplate, encoding.EscapeXMLAttr(sheetName))))
	wb.setPart(partWorkbookRels, []byte(workbookRelsTemplate))
	wb.setPart(partStyles, []byte(stylesTemplate))
	wb.setPart(partFirstSheet, []byte(worksheetTemplate))
	wb.setPart(partSharedStrings, sst.New().Serialize())
	wb.sheets = []sheetInfo{{Name: sheetName, Path: partFirstSheet}}
	return wb, nil
}

// Open reads a workbook from disk.
func Open(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	if _, err := validation.ValidateFileType(bytes.NewReader(data), path); err != nil {
		return nil, err
	}
	wb, err := OpenBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	logging.WorkbookEvent("open", path, "parts", len(wb.order), "sheets", len(wb.sheets))
	return wb, nil
}

// OpenReader reads a workbook from r.
func OpenReader(r io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "workbook stream", err)
	}
	return OpenBytes(data)
}

// OpenBytes parses workbook container bytes.
func OpenBytes(data []byte) (*Workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &errors.ParseError{Format: "workbook", Message: "not a zip container", Err: err}
	}

	wb := &Workbook{
		parts: make(map[string][]byte),
		dirty: make(map[string]bool),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.NewIO("read part", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.NewIO("read part", f.Name, err)
		}
		wb.parts[f.Name] = content
		wb.order = append(wb.order, f.Name)
	}

	for _, required := range []string{partContentTypes, partWorkbook} {
		if _, ok := wb.parts[required]; !ok {
			return nil, errors.NewParse("workbook", "", fmt.Sprintf("missing required part %s", required))
		}
	}

	if err := wb.loadSheets(); err != nil {
		return nil, err
	}
	return wb, nil
}

// loadSheets resolves sheet names to worksheet part paths through the
// workbook relationships.
func (wb *Workbook) loadSheets() error {
	doc, err := xmldoc.Parse(wb.parts[partWorkbook])
	if err != nil {
		return &errors.ParseError{Format: "workbook", Path: partWorkbook, Message: "malformed XML", Err: err}
	}
	sheetNodes, err := xmldoc.QueryAll(doc, "//sheets/sheet")
	if err != nil {
		return err
	}
	if len(sheetNodes) == 0 {
		return nil
	}

	targets, err := wb.relationshipTargets()
	if err != nil {
		return err
	}

	for _, n := range sheetNodes {
		name := xmldoc.Attr(n, "name")
		rid := xmldoc.Attr(n, "id")
		target, ok := targets[rid]
		if !ok {
			return errors.NewParse("workbook", partWorkbookRels, fmt.Sprintf("sheet %q has no relationship %s", name, rid))
		}
		wb.sheets = append(wb.sheets, sheetInfo{Name: name, Path: target})
	}
	return nil
}

func (wb *Workbook) relationshipTargets() (map[string]string, error) {
	data, ok := wb.parts[partWorkbookRels]
	if !ok {
		return nil, errors.NewParse("workbook", partWorkbookRels, "missing workbook relationships part")
	}
	doc, err := xmldoc.Parse(data)
	if err != nil {
		return nil, &errors.ParseError{Format: "relationships", Path: partWorkbookRels, Message: "malformed XML", Err: err}
	}
	rels, err := xmldoc.QueryAll(doc, "//Relationship")
	if err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels))
	for _, rel := range rels {
		targets[xmldoc.Attr(rel, "Id")] = resolveTarget(xmldoc.Attr(rel, "Target"))
	}
	return targets, nil
}

// resolveTarget turns a workbook-relative relationship target into a zip
// part name.
func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return "xl/" + target
}

// SheetNames returns the sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		names[i] = s.Name
	}
	return names
}

func (wb *Workbook) sheetPath(name string) (string, error) {
	var matches []string
	for _, s := range wb.sheets {
		if s.Name == name {
			matches = append(matches, s.Path)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.NewNotFound("sheet", name)
	case 1:
		return matches[0], nil
	default:
		return "", errors.NewAmbiguous("sheet", name, len(matches))
	}
}

// Pool returns the workbook's shared-string pool, parsing the part on first
// use. Workbooks without the part start with an empty pool; Bytes wires the
// part into the container once the pool is touched.
func (wb *Workbook) Pool() (*sst.Pool, error) {
	if wb.pool != nil {
		return wb.pool, nil
	}
	data, ok := wb.parts[partSharedStrings]
	if !ok {
		wb.pool = sst.New()
		return wb.pool, nil
	}
	pool, err := sst.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", partSharedStrings)
	}
	wb.pool = pool
	return wb.pool, nil
}

// PartNames returns every part name in zip order.
func (wb *Workbook) PartNames() []string {
	names := make([]string, len(wb.order))
	copy(names, wb.order)
	return names
}

// Part returns the raw bytes of one part.
func (wb *Workbook) Part(name string) ([]byte, error) {
	data, ok := wb.parts[name]
	if !ok {
		return nil, errors.NewNotFound("workbook part", name)
	}
	return data, nil
}

func (wb *Workbook) setPart(name string, data []byte) {
	if _, ok := wb.parts[name]; !ok {
		wb.order = append(wb.order, name)
	}
	wb.parts[name] = data
	wb.dirty[name] = true
}

// Modified reports whether any part changed since the workbook was opened.
func (wb *Workbook) Modified() bool {
	if wb.pool != nil && wb.pool.Dirty() {
		return true
	}
	return len(wb.dirty) > 0
}

// Bytes serializes the workbook back to container bytes.
func (wb *Workbook) Bytes() ([]byte, error) {
	if err := wb.flushPool(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range wb.order {
		w, err := zw.Create(name)
		if err != nil {
			return nil, errors.NewIO("write part", name, err)
		}
		if _, err := w.Write(wb.parts[name]); err != nil {
			return nil, errors.NewIO("write part", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.NewIO("write", "workbook archive", err)
	}
	return buf.Bytes(), nil
}

// Save writes the workbook to disk.
func (wb *Workbook) Save(path string) error {
	data, err := wb.Bytes()
	if err != nil {
		logging.WorkbookError("save", path, err)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.WorkbookError("save", path, err)
		return errors.NewIO("write", path, err)
	}
	logging.WorkbookEvent("save", path, "bytes", len(data))
	return nil
}

// flushPool reserializes the shared-string part when the pool changed, and
// wires the part into the container when it did not exist yet.
func (wb *Workbook) flushPool() error {
	if wb.pool == nil || !wb.pool.Dirty() {
		return nil
	}
	_, existed := wb.parts[partSharedStrings]
	wb.setPart(partSharedStrings, wb.pool.Serialize())
	if existed {
		return nil
	}
	if err := wb.addContentTypeOverride("/"+partSharedStrings, contentTypeSharedStrings); err != nil {
		return err
	}
	return wb.addWorkbookRelationship(relTypeSharedStrings, "sharedStrings.xml")
}

func (wb *Workbook) addContentTypeOverride(partName, contentType string) error {
	doc, err := xmldoc.Parse(wb.parts[partContentTypes])
	if err != nil {
		return &errors.ParseError{Format: "content types", Path: partContentTypes, Message: "malformed XML", Err: err}
	}
	existing, err := xmldoc.QueryAll(doc, "//Override")
	if err != nil {
		return err
	}
	for _, o := range existing {
		if xmldoc.Attr(o, "PartName") == partName {
			return nil
		}
	}
	root := xmldoc.RootElement(doc)
	if root == nil {
		return errors.NewParse("content types", partContentTypes, "missing <Types> root")
	}
	override := xmldoc.NewElement("Override")
	xmldoc.SetAttr(override, "PartName", partName)
	xmldoc.SetAttr(override, "ContentType", contentType)
	xmldoc.AppendChild(root, override)
	wb.setPart(partContentTypes, xmldoc.Serialize(doc))
	return nil
}

var relIDPattern = regexp.MustCompile(`^rId([0-9]+)$`)

func (wb *Workbook) addWorkbookRelationship(relType, target string) error {
	data, ok := wb.parts[partWorkbookRels]
	if !ok {
		data = []byte(emptyRelsTemplate)
	}
	doc, err := xmldoc.Parse(data)
	if err != nil {
		return &errors.ParseError{Format: "relationships", Path: partWorkbookRels, Message: "malformed XML", Err: err}
	}
	rels, err := xmldoc.QueryAll(doc, "//Relationship")
	if err != nil {
		return err
	}
	maxID := 0
	for _, rel := range rels {
		if xmldoc.Attr(rel, "Target") == target {
			return nil
		}
		if m := relIDPattern.FindStringSubmatch(xmldoc.Attr(rel, "Id")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxID {
				maxID = n
			}
		}
	}
	root := xmldoc.RootElement(doc)
	if root == nil {
		return errors.NewParse("relationships", partWorkbookRels, "missing <Relationships> root")
	}
	rel := xmldoc.NewElement("Relationship")
	xmldoc.SetAttr(rel, "Id", fmt.Sprintf("rId%d", maxID+1))
	xmldoc.SetAttr(rel, "Type", relType)
	xmldoc.SetAttr(rel, "Target", target)
	xmldoc.AppendChild(root, rel)
	wb.setPart(partWorkbookRels, xmldoc.Serialize(doc))
	return nil
}
