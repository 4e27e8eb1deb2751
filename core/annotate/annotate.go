// Package annotate applies superscript and subscript markers to workbook
// cells: the cell text is rewritten as a three-run rich string in the
// shared-string pool.
//
// Dependencies are explicit: the workbook is a parameter and the touched
// slot index is part of the result, so callers can chain further edits or
// record the change elsewhere.
package annotate

import (
	"github.com/google/uuid"

	"github.com/cellnote/cellnote/core/cellref"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/richtext"
	"github.com/cellnote/cellnote/core/style"
	"github.com/cellnote/cellnote/core/xlsx"
	"github.com/cellnote/cellnote/internal/logging"
)

// AtEnd places the marker after the whole base text.
const AtEnd = -1

// Request describes one annotation.
type Request struct {
	// Sheet is the target sheet name. Empty falls back to the cell
	// reference's sheet, then to the workbook's first sheet.
	Sheet string

	// Cell is the target cell.
	Cell *cellref.Ref

	// BaseText is the cell text the marker attaches to.
	BaseText string

	// Marker is the annotation run text (for example "1,2,3").
	Marker string

	// SplitAt is the rune offset where the base text splits around the
	// marker. The zero value splits before the first rune; use AtEnd to
	// append.
	SplitAt int

	// Style shapes all three runs; zero fields take composer defaults.
	Style style.Style

	// Sentinel overrides the generated placeholder. Leave empty unless
	// the caller coordinates placeholders itself.
	Sentinel string
}

// Result reports what an annotation touched.
type Result struct {
	Sheet    string             `json:"sheet"`
	Cell     string             `json:"cell"`
	Slot     int                `json:"slot"`
	Sentinel string             `json:"sentinel"`
	Fragment *richtext.Fragment `json:"-"`
}

// NewSentinel returns a placeholder that cannot collide with workbook
// content.
func NewSentinel() string {
	return "cellnote:" + uuid.NewString()
}

// Compose builds and validates the fragment for a request without touching
// any workbook.
func Compose(req Request) (*richtext.Fragment, error) {
	if req.SplitAt == AtEnd {
		return richtext.Compose(req.BaseText, req.Marker, req.Style)
	}
	return richtext.ComposeAt(req.BaseText, req.Marker, req.SplitAt, req.Style)
}

// Apply rewrites one cell of wb as an annotated rich string and returns the
// touched slot.
//
// The fragment is composed and validated before the workbook is touched.
// The placeholder sentinel is then appended to the pool, written into the
// cell, located again by exact match, and replaced with the fragment. Zero
// matches or more than one match abort with an error instead of guessing
// which slot to overwrite.
func Apply(wb *xlsx.Workbook, req Request) (*Result, error) {
	if wb == nil {
		return nil, errors.NewValidation("workbook", "nil workbook")
	}
	if req.Cell == nil {
		return nil, errors.NewValidation("cell", "nil cell reference")
	}

	sheet, err := resolveSheet(wb, req)
	if err != nil {
		return nil, err
	}

	fragment, err := Compose(req)
	if err != nil {
		return nil, err
	}

	sentinel := req.Sentinel
	if sentinel == "" {
		sentinel = NewSentinel()
	}

	pool, err := wb.Pool()
	if err != nil {
		return nil, err
	}

	slot := pool.Append(sentinel)
	if err := wb.SetCellSlot(sheet, req.Cell, slot); err != nil {
		return nil, err
	}

	matches := pool.FindExact(sentinel)
	switch {
	case len(matches) == 0:
		return nil, errors.NewNotFound("shared string slot", sentinel)
	case len(matches) > 1:
		return nil, errors.NewAmbiguous("shared string slot", sentinel, len(matches))
	}

	if err := pool.ReplaceRich(matches[0], fragment); err != nil {
		return nil, err
	}

	logging.AnnotateEvent(sheet, req.Cell.A1(), matches[0], "marker", req.Marker)
	return &Result{
		Sheet:    sheet,
		Cell:     req.Cell.A1(),
		Slot:     matches[0],
		Sentinel: sentinel,
		Fragment: fragment,
	}, nil
}

// resolveSheet picks the target sheet and confirms it exists.
func resolveSheet(wb *xlsx.Workbook, req Request) (string, error) {
	name := req.Sheet
	if name == "" {
		name = req.Cell.Sheet
	}
	names := wb.SheetNames()
	if name == "" {
		if len(names) == 0 {
			return "", errors.NewNotFound("sheet", "")
		}
		return names[0], nil
	}
	for _, n := range names {
		if n == name {
			return name, nil
		}
	}
	return "", errors.NewNotFound("sheet", name)
}
