package xlsx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/cellnote/cellnote/core/cellref"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/xmldoc"
)

// SetCellString writes text into a cell as a shared-string reference,
// creating the row and cell in sorted position when absent. An existing
// pool entry equal to text is reused. Returns the slot index the cell
// points at.
func (wb *Workbook) SetCellString(sheet string, ref *cellref.Ref, text string) (int, error) {
	if ref == nil {
		return 0, errors.NewValidation("cell", "nil cell reference")
	}
	if _, err := wb.sheetPath(sheet); err != nil {
		return 0, err
	}
	pool, err := wb.Pool()
	if err != nil {
		return 0, err
	}
	var idx int
	if matches := pool.FindExact(text); len(matches) > 0 {
		idx = matches[0]
	} else {
		idx = pool.Append(text)
	}
	if err := wb.SetCellSlot(sheet, ref, idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// SetCellSlot points a cell at an existing shared-string slot without
// touching the pool. Several cells may share one slot.
func (wb *Workbook) SetCellSlot(sheet string, ref *cellref.Ref, slot int) error {
	if ref == nil {
		return errors.NewValidation("cell", "nil cell reference")
	}
	pool, err := wb.Pool()
	if err != nil {
		return err
	}
	if _, err := pool.At(slot); err != nil {
		return err
	}

	doc, path, err := wb.sheetDoc(sheet)
	if err != nil {
		return err
	}
	cell, err := findOrCreateCell(doc, ref)
	if err != nil {
		return err
	}
	xmldoc.SetAttr(cell, "t", "s")
	xmldoc.RemoveChildren(cell)
	v := xmldoc.NewElement("v")
	xmldoc.AppendChild(v, xmldoc.NewText(strconv.Itoa(slot)))
	xmldoc.AppendChild(cell, v)

	wb.setPart(path, xmldoc.Serialize(doc))
	return nil
}

// CellString reads the text content of a cell. Shared-string cells resolve
// through the pool; other value cells return their raw <v> text.
func (wb *Workbook) CellString(sheet string, ref *cellref.Ref) (string, error) {
	if ref == nil {
		return "", errors.NewValidation("cell", "nil cell reference")
	}
	doc, path, err := wb.sheetDoc(sheet)
	if err != nil {
		return "", err
	}

	cell, err := xmldoc.Query(doc, fmt.Sprintf(`//row[@r="%d"]/c[@r="%s"]`, ref.Row, ref.A1()))
	if err != nil {
		return "", err
	}
	if cell == nil {
		return "", errors.NewNotFound("cell", ref.String())
	}

	v := xmldoc.Element(cell, "v")
	if v == nil {
		// inline string cells carry their text under <is>
		if is := xmldoc.Element(cell, "is"); is != nil {
			return is.InnerText(), nil
		}
		return "", nil
	}
	if xmldoc.Attr(cell, "t") != "s" {
		return v.InnerText(), nil
	}

	idx, err := strconv.Atoi(strings.TrimSpace(v.InnerText()))
	if err != nil {
		return "", errors.NewParse("worksheet", path, fmt.Sprintf("cell %s has non-numeric shared string index %q", ref.A1(), v.InnerText()))
	}
	pool, err := wb.Pool()
	if err != nil {
		return "", err
	}
	entry, err := pool.At(idx)
	if err != nil {
		return "", err
	}
	return entry.Text, nil
}

// sheetDoc parses the worksheet part backing a sheet name.
func (wb *Workbook) sheetDoc(sheet string) (*xmlquery.Node, string, error) {
	path, err := wb.sheetPath(sheet)
	if err != nil {
		return nil, "", err
	}
	data, ok := wb.parts[path]
	if !ok {
		return nil, "", errors.NewNotFound("worksheet part", path)
	}
	doc, err := xmldoc.Parse(data)
	if err != nil {
		return nil, "", &errors.ParseError{Format: "worksheet", Path: path, Message: "malformed XML", Err: err}
	}
	return doc, path, nil
}

// findOrCreateCell walks sheetData for the row and cell of ref, creating
// both in row-major sorted position when missing.
func findOrCreateCell(doc *xmlquery.Node, ref *cellref.Ref) (*xmlquery.Node, error) {
	sheetData, err := xmldoc.Query(doc, "//sheetData")
	if err != nil {
		return nil, err
	}
	if sheetData == nil {
		root := xmldoc.RootElement(doc)
		if root == nil || root.Data != "worksheet" {
			return nil, errors.NewParse("worksheet", "", "missing <worksheet> root")
		}
		sheetData = xmldoc.NewElement("sheetData")
		xmldoc.AppendChild(root, sheetData)
	}

	row := findOrCreateRow(sheetData, ref.Row)
	return placeCell(row, ref), nil
}

func findOrCreateRow(sheetData *xmlquery.Node, rowNum int) *xmlquery.Node {
	var next *xmlquery.Node
	for _, r := range xmldoc.Elements(sheetData, "row") {
		n, err := strconv.Atoi(xmldoc.Attr(r, "r"))
		if err != nil {
			continue
		}
		if n == rowNum {
			return r
		}
		if n > rowNum && next == nil {
			next = r
		}
	}
	row := xmldoc.NewElement("row")
	xmldoc.SetAttr(row, "r", strconv.Itoa(rowNum))
	if next != nil {
		xmldoc.InsertBefore(sheetData, row, next)
	} else {
		xmldoc.AppendChild(sheetData, row)
	}
	return row
}

func placeCell(row *xmlquery.Node, ref *cellref.Ref) *xmlquery.Node {
	var next *xmlquery.Node
	for _, c := range xmldoc.Elements(row, "c") {
		existing, err := cellref.Parse(xmldoc.Attr(c, "r"))
		if err != nil {
			continue
		}
		if existing.Col == ref.Col && existing.Row == ref.Row {
			return c
		}
		if ref.Before(existing) && next == nil {
			next = c
		}
	}
	cell := xmldoc.NewElement("c")
	xmldoc.SetAttr(cell, "r", ref.A1())
	if next != nil {
		xmldoc.InsertBefore(row, cell, next)
	} else {
		xmldoc.AppendChild(row, cell)
	}
	return cell
}
