// Package style defines the immutable run-style record used when composing
// styled text runs for spreadsheet cells.
package style

import (
	"fmt"
	"strings"

	"github.com/cellnote/cellnote/core/errors"
)

// Script is the vertical alignment applied to an annotation run.
type Script string

const (
	// ScriptNone renders the annotation on the baseline.
	ScriptNone Script = "none"
	// ScriptSuperscript renders the annotation above the baseline.
	ScriptSuperscript Script = "superscript"
	// ScriptSubscript renders the annotation below the baseline.
	ScriptSubscript Script = "subscript"
)

// Valid reports whether the script value is one of the recognized positions.
// The empty string is valid and resolves to the default at normalization.
func (s Script) Valid() bool {
	switch s {
	case "", ScriptNone, ScriptSuperscript, ScriptSubscript:
		return true
	}
	return false
}

// Default values applied to unset style fields.
const (
	DefaultFont   = "Calibri"
	DefaultFamily = 2
	DefaultSize   = 8
	DefaultColor  = "000000"
	DefaultScript = ScriptSuperscript
)

// Style describes the run properties of a text run. The zero value is usable:
// unset fields are filled from the defaults by Normalize. Values are never
// mutated after construction; derivation goes through WithDefaults.
type Style struct {
	// Font is the font name (rFont).
	Font string
	// Family is the OOXML font family class (2 = swiss/sans-serif).
	Family int
	// Size is the point size. Must be positive once resolved.
	Size int
	// Color is an RGB hex triple, optional leading '#'.
	Color string
	// Bold, Italic and Underline toggle the matching run property.
	Bold      bool
	Italic    bool
	Underline bool
	// Script is the vertical alignment given to the annotation run.
	Script Script
}

// Default returns the fully-populated default style.
func Default() Style {
	return Style{
		Font:   DefaultFont,
		Family: DefaultFamily,
		Size:   DefaultSize,
		Color:  DefaultColor,
		Script: DefaultScript,
	}
}

// WithDefaults returns a copy of s with unset fields filled from the
// defaults. Boolean flags keep their value; false is the default.
func (s Style) WithDefaults() Style {
	out := s
	if out.Font == "" {
		out.Font = DefaultFont
	}
	if out.Family == 0 {
		out.Family = DefaultFamily
	}
	if out.Size == 0 {
		out.Size = DefaultSize
	}
	if out.Color == "" {
		out.Color = DefaultColor
	}
	if out.Script == "" {
		out.Script = DefaultScript
	}
	return out
}

// NormalizeColor canonicalizes an RGB hex triple: the optional leading '#'
// is stripped and hex digits are uppercased. Anything other than exactly six
// hex digits is rejected.
func NormalizeColor(color string) (string, error) {
	c := strings.TrimPrefix(color, "#")
	if len(c) != 6 {
		return "", errors.NewValidation("color", fmt.Sprintf("%q is not a six-digit hex triple", color))
	}
	for _, r := range c {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return "", errors.NewValidation("color", fmt.Sprintf("%q contains non-hex digit %q", color, r))
		}
	}
	return strings.ToUpper(c), nil
}

// Validate checks a resolved style record.
func (s Style) Validate() error {
	if s.Size <= 0 {
		return errors.NewValidation("size", fmt.Sprintf("point size must be positive, got %d", s.Size))
	}
	if s.Family < 0 {
		return errors.NewValidation("family", fmt.Sprintf("font family class must not be negative, got %d", s.Family))
	}
	if _, err := NormalizeColor(s.Color); err != nil {
		return err
	}
	if !s.Script.Valid() {
		return errors.NewValidation("script", fmt.Sprintf("%q is not one of none, superscript, subscript", s.Script))
	}
	return nil
}

// Normalize fills unset fields with defaults, canonicalizes the color and
// validates the result. The input is not modified.
func (s Style) Normalize() (Style, error) {
	out := s.WithDefaults()
	color, err := NormalizeColor(out.Color)
	if err != nil {
		return Style{}, err
	}
	out.Color = color
	if err := out.Validate(); err != nil {
		return Style{}, err
	}
	return out, nil
}

// ARGB returns the color as the ARGB value written into run properties:
// opaque alpha prepended to the normalized hex triple.
func (s Style) ARGB() string {
	return "FF" + strings.ToUpper(strings.TrimPrefix(s.Color, "#"))
}
