// Package cellref parses and formats A1-notation cell references, with an
// optional sheet prefix ("B12", "$B$12", "Summary!B12", "'P&L 2026'!B12").
package cellref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/cellnote/cellnote/core/errors"
)

// Grid limits of the xlsx format.
const (
	// MaxColumns is the last addressable column ("XFD").
	MaxColumns = 16384
	// MaxRows is the last addressable row.
	MaxRows = 1048576
)

// Ref is a resolved cell reference. Column and row are 1-based.
type Ref struct {
	// Sheet is the worksheet name, empty when the reference carried none.
	Sheet string `json:"sheet,omitempty"`

	// Col is the 1-based column number (A=1, Z=26, AA=27).
	Col int `json:"col"`

	// Row is the 1-based row number.
	Row int `json:"row"`
}

// refGrammar is the participle grammar for A1 references.
// Examples: "B12", "$B$12", "Sheet1!B12", "'My Sheet'!B12", "Q1!C3"
//
//nolint:govet // the struct tags are participle grammar, not reflect tags
type refGrammar struct {
	Sheet *string `parser:"( @( Quoted | Cell | Word ) \"!\" )?"`
	Cell  string  `parser:"@Cell"`
}

// refLexer defines the lexer for A1 references.
// Note: Cell is tried before Word so "B12" tokenizes as a cell; a bare sheet
// name that also looks like a cell ("Q1") is resolved by the "!" lookahead.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `'(?:[^']|'')*'`},
	{Name: "Cell", Pattern: `\$?[A-Za-z]{1,3}\$?[0-9]+`},
	{Name: "Word", Pattern: `[A-Za-z_][A-Za-z0-9_.]*`},
	{Name: "Bang", Pattern: `!`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// refParser is the participle parser for A1 references. Lookahead 2 lets the
// parser see the "!" that distinguishes a sheet prefix from the cell itself.
var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// cellPattern splits a lexed cell token into column letters and row digits.
var cellPattern = regexp.MustCompile(`^\$?([A-Za-z]{1,3})\$?([0-9]+)$`)

// Parse parses an A1-notation reference string.
// Supported formats:
//   - "B12" (cell only)
//   - "$B$12" (absolute markers accepted and discarded)
//   - "Sheet1!B12" (bare sheet prefix)
//   - "'P&L 2026'!B12" (quoted sheet prefix, '' escapes a quote)
func Parse(s string) (*Ref, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, errors.NewParse("A1 reference", "", "empty reference string")
	}

	parsed, err := refParser.ParseString("", trimmed)
	if err != nil {
		return nil, &errors.ParseError{
			Format:  "A1 reference",
			Message: fmt.Sprintf("%q is not a valid cell reference", s),
			Err:     err,
		}
	}

	m := cellPattern.FindStringSubmatch(parsed.Cell)
	if m == nil {
		return nil, errors.NewParse("A1 reference", "", fmt.Sprintf("%q is not a valid cell", parsed.Cell))
	}

	col, err := ColumnNumber(m[1])
	if err != nil {
		return nil, err
	}
	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return nil, errors.NewParse("A1 reference", "", fmt.Sprintf("row %q out of range", m[2]))
	}
	if row > MaxRows {
		return nil, errors.NewParse("A1 reference", "", fmt.Sprintf("row %d exceeds the grid limit %d", row, MaxRows))
	}

	ref := &Ref{Col: col, Row: row}
	if parsed.Sheet != nil {
		ref.Sheet = unquoteSheet(*parsed.Sheet)
	}
	return ref, nil
}

// ColumnNumber converts column letters to a 1-based column number
// (A=1 ... Z=26, AA=27).
func ColumnNumber(letters string) (int, error) {
	if letters == "" {
		return 0, errors.NewParse("A1 reference", "", "empty column letters")
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, errors.NewParse("A1 reference", "", fmt.Sprintf("invalid column letter %q", r))
		}
		n = n*26 + int(r-'A'+1)
	}
	if n > MaxColumns {
		return 0, errors.NewParse("A1 reference", "", fmt.Sprintf("column %q exceeds the grid limit", letters))
	}
	return n, nil
}

// ColumnLetters converts a 1-based column number to column letters.
// Out-of-range input returns "".
func ColumnLetters(n int) string {
	if n < 1 || n > MaxColumns {
		return ""
	}
	var b [3]byte
	i := len(b)
	for n > 0 {
		n--
		i--
		b[i] = byte('A' + n%26)
		n /= 26
	}
	return string(b[i:])
}

// A1 returns the cell part without the sheet prefix ("B12").
func (r *Ref) A1() string {
	return ColumnLetters(r.Col) + strconv.Itoa(r.Row)
}

// String returns the full reference, quoting the sheet name when it needs it.
func (r *Ref) String() string {
	if r.Sheet == "" {
		return r.A1()
	}
	return quoteSheet(r.Sheet) + "!" + r.A1()
}

// WithSheet returns a copy of the reference bound to the given sheet.
func (r *Ref) WithSheet(sheet string) *Ref {
	return &Ref{Sheet: sheet, Col: r.Col, Row: r.Row}
}

// Before reports row-major ordering: by row, then by column. Used to keep
// rows and cells sorted when inserting into sheet XML.
func (r *Ref) Before(other *Ref) bool {
	if r.Row != other.Row {
		return r.Row < other.Row
	}
	return r.Col < other.Col
}

// bareSheet matches sheet names that can stand unquoted before "!".
var bareSheet = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

func quoteSheet(name string) string {
	if bareSheet.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func unquoteSheet(token string) string {
	if strings.HasPrefix(token, "'") && strings.HasSuffix(token, "'") && len(token) >= 2 {
		inner := token[1 : len(token)-1]
		return strings.ReplaceAll(inner, "''", "'")
	}
	return token
}
