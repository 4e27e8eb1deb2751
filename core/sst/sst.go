// Package sst models the xl/sharedStrings.xml part of a workbook: an ordered
// pool of string items that worksheet cells reference by index.
package sst

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/cellnote/cellnote/core/encoding"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/richtext"
	"github.com/cellnote/cellnote/core/xmldoc"
)

const sstNamespace = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"

// Entry is one <si> item of the pool.
type Entry struct {
	// Text is the plain content. For rich entries it is the concatenation
	// of the run texts, kept for display and matching.
	Text string `json:"text"`

	// Rich marks entries that carry run markup instead of a bare <t>.
	Rich bool `json:"rich,omitempty"`

	// Raw is the verbatim <si> markup of a rich entry. Empty for plain
	// entries, which serialize from Text.
	Raw string `json:"-"`
}

// Pool is an ordered shared-string pool. Indices are stable: entries are
// appended or replaced in place, never removed or reordered.
type Pool struct {
	entries []Entry
	dirty   bool
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{}
}

// Parse reads a sharedStrings part into a pool.
//
// Items that contain run or phonetic markup are kept verbatim as rich
// entries so that unrelated content survives a rewrite of the part.
func Parse(data []byte) (*Pool, error) {
	doc, err := xmldoc.Parse(data)
	if err != nil {
		return nil, &errors.ParseError{Format: "shared strings", Message: "malformed XML", Err: err}
	}

	root := xmldoc.RootElement(doc)
	if root == nil || root.Data != "sst" {
		return nil, errors.NewParse("shared strings", "", "missing <sst> root element")
	}

	p := &Pool{}
	for _, si := range xmldoc.Elements(root, "si") {
		if isRich(si) {
			text := strings.Builder{}
			for _, r := range xmldoc.Elements(si, "r") {
				if t := xmldoc.Element(r, "t"); t != nil {
					text.WriteString(t.InnerText())
				}
			}
			p.entries = append(p.entries, Entry{
				Text: text.String(),
				Rich: true,
				Raw:  si.OutputXML(true),
			})
			continue
		}

		text := ""
		if t := xmldoc.Element(si, "t"); t != nil {
			text = t.InnerText()
		}
		p.entries = append(p.entries, Entry{Text: text})
	}
	return p, nil
}

// isRich reports whether a <si> holds anything beyond a single <t>.
func isRich(si *xmlquery.Node) bool {
	for _, child := range xmldoc.ChildElements(si) {
		if child.Data != "t" {
			return true
		}
	}
	return false
}

// Len returns the number of entries in the pool.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Entries returns the pool contents in index order. The slice is a copy.
func (p *Pool) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// At returns the entry at index i.
func (p *Pool) At(i int) (Entry, error) {
	if i < 0 || i >= len(p.entries) {
		return Entry{}, errors.NewValidation("index", fmt.Sprintf("slot %d out of range [0, %d)", i, len(p.entries)))
	}
	return p.entries[i], nil
}

// Append adds a plain entry and returns its index. The pool never
// deduplicates: reusing an equal existing entry is a writer optimization
// that belongs to the workbook layer.
func (p *Pool) Append(text string) int {
	p.entries = append(p.entries, Entry{Text: text})
	p.dirty = true
	return len(p.entries) - 1
}

// FindExact returns the indices of every plain entry whose content equals
// text exactly. Rich entries never match, even when their concatenated run
// text is equal.
func (p *Pool) FindExact(text string) []int {
	var matches []int
	for i, e := range p.entries {
		if !e.Rich && e.Text == text {
			matches = append(matches, i)
		}
	}
	return matches
}

// ReplaceRich overwrites the entry at index i with a composed fragment.
// Cells referencing the index pick up the rich content without changing.
func (p *Pool) ReplaceRich(i int, f *richtext.Fragment) error {
	if i < 0 || i >= len(p.entries) {
		return errors.NewValidation("index", fmt.Sprintf("slot %d out of range [0, %d)", i, len(p.entries)))
	}
	p.entries[i] = Entry{
		Text: f.Text(),
		Rich: true,
		Raw:  f.MarkupXML(),
	}
	p.dirty = true
	return nil
}

// Dirty reports whether the pool changed since it was parsed or created.
func (p *Pool) Dirty() bool {
	return p.dirty
}

// Serialize renders the pool back to sharedStrings XML. count and
// uniqueCount both carry the entry total: the pool does not track how many
// cells reference each item.
func (p *Pool) Serialize() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	fmt.Fprintf(&b, `<sst xmlns="%s" count="%d" uniqueCount="%d">`, sstNamespace, len(p.entries), len(p.entries))
	for _, e := range p.entries {
		if e.Rich {
			b.WriteString(e.Raw)
			continue
		}
		if needsPreserve(e.Text) {
			b.WriteString(`<si><t xml:space="preserve">`)
		} else {
			b.WriteString(`<si><t>`)
		}
		b.WriteString(encoding.EscapeXMLText(e.Text))
		b.WriteString(`</t></si>`)
	}
	b.WriteString(`</sst>`)
	return []byte(b.String())
}

// needsPreserve reports whether text would lose surrounding whitespace
// without an xml:space="preserve" marker.
func needsPreserve(s string) bool {
	return s != "" && strings.TrimSpace(s) != s
}
