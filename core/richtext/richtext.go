// Package richtext composes styled multi-run shared-string fragments: a base
// text split at an offset with a superscript or subscript annotation inserted
// between the halves.
package richtext

import (
	"fmt"
	"strings"

	"github.com/cellnote/cellnote/core/encoding"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/style"
)

// Run is a contiguous span of text sharing one style.
type Run struct {
	Text  string      `json:"text"`
	Style style.Style `json:"style"`
}

// Scripted reports whether the run carries a vertical-alignment marker.
func (r Run) Scripted() bool {
	return r.Style.Script == style.ScriptSuperscript || r.Style.Script == style.ScriptSubscript
}

// Fragment is an ordered sequence of exactly three runs: the base text before
// the split styled normally, the annotation in its script position, and the
// base text after the split styled normally. Any of the three may be empty.
type Fragment struct {
	runs [3]Run
}

// Compose builds a fragment with the annotation placed after all base text
// (split offset = length of baseText in code points).
func Compose(baseText, annotationText string, opts style.Style) (*Fragment, error) {
	return ComposeAt(baseText, annotationText, len([]rune(baseText)), opts)
}

// ComposeAt builds a fragment with baseText split at splitOffset code points.
// Offsets outside [0, len] are rejected, never clamped. The returned fragment
// is immutable; the same inputs always produce the same fragment.
func ComposeAt(baseText, annotationText string, splitOffset int, opts style.Style) (*Fragment, error) {
	resolved, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	runes := []rune(baseText)
	if splitOffset < 0 || splitOffset > len(runes) {
		return nil, errors.NewValidation("offset",
			fmt.Sprintf("split offset %d out of range [0, %d]", splitOffset, len(runes)))
	}

	normal := resolved
	normal.Script = style.ScriptNone

	return &Fragment{runs: [3]Run{
		{Text: string(runes[:splitOffset]), Style: normal},
		{Text: annotationText, Style: resolved},
		{Text: string(runes[splitOffset:]), Style: normal},
	}}, nil
}

// Runs returns the three runs in order.
func (f *Fragment) Runs() []Run {
	return f.runs[:]
}

// Pre returns the run before the split.
func (f *Fragment) Pre() Run { return f.runs[0] }

// Annotation returns the scripted middle run.
func (f *Fragment) Annotation() Run { return f.runs[1] }

// Post returns the run after the split.
func (f *Fragment) Post() Run { return f.runs[2] }

// BaseText returns the original base text (pre + post, annotation excluded).
func (f *Fragment) BaseText() string {
	return f.runs[0].Text + f.runs[2].Text
}

// Text returns the full displayed text, annotation included.
func (f *Fragment) Text() string {
	return f.runs[0].Text + f.runs[1].Text + f.runs[2].Text
}

// SplitOffset returns the code point offset the base text was split at.
func (f *Fragment) SplitOffset() int {
	return len([]rune(f.runs[0].Text))
}

// MarkupXML serializes the fragment into the shared-string <si> dialect, one
// <r> per run. Run properties keep the fixed child order sz, color, rFont,
// family, vertAlign, b, i, u; the first four are always present, the rest
// only when set. Text nodes preserve whitespace.
func (f *Fragment) MarkupXML() string {
	var b strings.Builder
	b.WriteString("<si>")
	for _, r := range f.runs {
		b.WriteString("<r>")
		writeRunProperties(&b, r.Style)
		b.WriteString(`<t xml:space="preserve">`)
		b.WriteString(encoding.EscapeXMLText(r.Text))
		b.WriteString("</t></r>")
	}
	b.WriteString("</si>")
	return b.String()
}

func writeRunProperties(b *strings.Builder, st style.Style) {
	b.WriteString("<rPr>")
	fmt.Fprintf(b, `<sz val="%d"/>`, st.Size)
	fmt.Fprintf(b, `<color rgb="%s"/>`, st.ARGB())
	fmt.Fprintf(b, `<rFont val="%s"/>`, encoding.EscapeXMLAttr(st.Font))
	fmt.Fprintf(b, `<family val="%d"/>`, st.Family)
	switch st.Script {
	case style.ScriptSuperscript, style.ScriptSubscript:
		fmt.Fprintf(b, `<vertAlign val="%s"/>`, st.Script)
	}
	if st.Bold {
		b.WriteString("<b/>")
	}
	if st.Italic {
		b.WriteString("<i/>")
	}
	if st.Underline {
		b.WriteString("<u/>")
	}
	b.WriteString("</rPr>")
}

// HTML renders the fragment for preview purposes. Empty runs are skipped.
func (f *Fragment) HTML() string {
	var b strings.Builder
	for _, r := range f.runs {
		if r.Text == "" {
			continue
		}
		var opening, closing string
		if r.Style.Bold {
			opening += "<b>"
			closing = "</b>" + closing
		}
		if r.Style.Italic {
			opening += "<i>"
			closing = "</i>" + closing
		}
		if r.Style.Underline {
			opening += "<u>"
			closing = "</u>" + closing
		}
		switch r.Style.Script {
		case style.ScriptSuperscript:
			opening += "<sup>"
			closing = "</sup>" + closing
		case style.ScriptSubscript:
			opening += "<sub>"
			closing = "</sub>" + closing
		}
		b.WriteString(opening)
		b.WriteString(encoding.EscapeHTML(r.Text))
		b.WriteString(closing)
	}
	return b.String()
}
