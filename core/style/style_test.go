package style

import (
	"testing"

	"github.com/cellnote/cellnote/core/errors"
)

func TestDefault(t *testing.T) {
	d := Default()
	if d.Font != "Calibri" {
		t.Errorf("Font = %q, want %q", d.Font, "Calibri")
	}
	if d.Family != 2 {
		t.Errorf("Family = %d, want 2", d.Family)
	}
	if d.Size != 8 {
		t.Errorf("Size = %d, want 8", d.Size)
	}
	if d.Color != "000000" {
		t.Errorf("Color = %q, want %q", d.Color, "000000")
	}
	if d.Script != ScriptSuperscript {
		t.Errorf("Script = %q, want %q", d.Script, ScriptSuperscript)
	}
	if d.Bold || d.Italic || d.Underline {
		t.Error("expected bold/italic/underline to default to false")
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Default().Validate() unexpected error: %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Style
		want Style
	}{
		{
			name: "zero value fills everything",
			in:   Style{},
			want: Default(),
		},
		{
			name: "set fields are kept",
			in:   Style{Font: "Arial", Size: 12, Color: "FF0000", Script: ScriptSubscript},
			want: Style{Font: "Arial", Family: 2, Size: 12, Color: "FF0000", Script: ScriptSubscript},
		},
		{
			name: "flags survive",
			in:   Style{Bold: true, Underline: true},
			want: Style{Font: "Calibri", Family: 2, Size: 8, Color: "000000", Bold: true, Underline: true, Script: ScriptSuperscript},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.WithDefaults(); got != tt.want {
				t.Errorf("WithDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		name      string
		color     string
		want      string
		wantError bool
	}{
		{name: "plain hex", color: "1a2b3c", want: "1A2B3C"},
		{name: "leading hash", color: "#1a2b3c", want: "1A2B3C"},
		{name: "already uppercase", color: "ABCDEF", want: "ABCDEF"},
		{name: "black", color: "000000", want: "000000"},
		{name: "too short", color: "fff", wantError: true},
		{name: "too long", color: "00112233", wantError: true},
		{name: "non-hex digit", color: "00g000", wantError: true},
		{name: "empty", color: "", wantError: true},
		{name: "hash only", color: "#", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeColor(tt.color)
			if tt.wantError {
				if err == nil {
					t.Errorf("NormalizeColor(%q) expected error, got %q", tt.color, got)
					return
				}
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("NormalizeColor(%q) error = %v, want ErrInvalidInput", tt.color, err)
				}
				return
			}
			if err != nil {
				t.Errorf("NormalizeColor(%q) unexpected error: %v", tt.color, err)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeColor(%q) = %q, want %q", tt.color, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		style     Style
		wantError bool
	}{
		{
			name:  "default is valid",
			style: Default(),
		},
		{
			name:  "custom valid style",
			style: Style{Font: "Arial", Family: 2, Size: 10, Color: "#ff0000", Bold: true, Script: ScriptSubscript},
		},
		{
			name:  "script none is valid",
			style: Style{Font: "Arial", Family: 2, Size: 10, Color: "FF0000", Script: ScriptNone},
		},
		{
			name:      "zero size",
			style:     Style{Font: "Arial", Family: 2, Size: 0, Color: "FF0000", Script: ScriptNone},
			wantError: true,
		},
		{
			name:      "negative size",
			style:     Style{Font: "Arial", Family: 2, Size: -8, Color: "FF0000", Script: ScriptNone},
			wantError: true,
		},
		{
			name:      "negative family",
			style:     Style{Font: "Arial", Family: -1, Size: 8, Color: "FF0000", Script: ScriptNone},
			wantError: true,
		},
		{
			name:      "bad color",
			style:     Style{Font: "Arial", Family: 2, Size: 8, Color: "red", Script: ScriptNone},
			wantError: true,
		},
		{
			name:      "bad script",
			style:     Style{Font: "Arial", Family: 2, Size: 8, Color: "FF0000", Script: "sideways"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.style.Validate()
			if tt.wantError {
				if err == nil {
					t.Error("Validate() expected error, got nil")
					return
				}
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("zero value resolves to default", func(t *testing.T) {
		got, err := Style{}.Normalize()
		if err != nil {
			t.Fatalf("Normalize() unexpected error: %v", err)
		}
		if got != Default() {
			t.Errorf("Normalize() = %+v, want %+v", got, Default())
		}
	})

	t.Run("color is canonicalized", func(t *testing.T) {
		got, err := Style{Color: "#a1b2c3"}.Normalize()
		if err != nil {
			t.Fatalf("Normalize() unexpected error: %v", err)
		}
		if got.Color != "A1B2C3" {
			t.Errorf("Color = %q, want %q", got.Color, "A1B2C3")
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		in := Style{Color: "#a1b2c3"}
		if _, err := in.Normalize(); err != nil {
			t.Fatalf("Normalize() unexpected error: %v", err)
		}
		if in.Color != "#a1b2c3" {
			t.Errorf("input mutated: Color = %q", in.Color)
		}
	})

	t.Run("invalid color rejected", func(t *testing.T) {
		if _, err := (Style{Color: "nope"}).Normalize(); err == nil {
			t.Error("Normalize() expected error for bad color")
		}
	})

	t.Run("invalid script rejected", func(t *testing.T) {
		if _, err := (Style{Script: "sideways"}).Normalize(); err == nil {
			t.Error("Normalize() expected error for bad script")
		}
	})
}

func TestARGB(t *testing.T) {
	tests := []struct {
		name  string
		style Style
		want  string
	}{
		{name: "default black", style: Default(), want: "FF000000"},
		{name: "normalized red", style: Style{Color: "FF0000"}, want: "FFFF0000"},
		{name: "lowercase input", style: Style{Color: "a1b2c3"}, want: "FFA1B2C3"},
		{name: "hash stripped", style: Style{Color: "#a1b2c3"}, want: "FFA1B2C3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.style.ARGB(); got != tt.want {
				t.Errorf("ARGB() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScriptValid(t *testing.T) {
	valid := []Script{"", ScriptNone, ScriptSuperscript, ScriptSubscript}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("Script(%q).Valid() = false, want true", s)
		}
	}
	if Script("sideways").Valid() {
		t.Error(`Script("sideways").Valid() = true, want false`)
	}
}
