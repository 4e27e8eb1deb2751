// Package validation checks user-supplied names, paths, and file contents
// before they reach the workbook layer: sheet naming rules, filename and
// path hygiene, and magic-byte file type verification.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input size limits.
const (
	MaxFilenameLength  = 255  // single path element
	MaxPathLength      = 4096 // full path
	MaxSheetNameLength = 31   // spreadsheet limit on sheet names
)

// Sentinel errors the validators report.
var (
	ErrInvalidSheetName = errors.New("invalid sheet name")
	ErrInvalidFilename  = errors.New("unusable filename")
	ErrFilenameTooLong  = errors.New("file name too long")
	ErrEmptyPath        = errors.New("empty path")
	ErrPathTooLong      = errors.New("path exceeds length limit")
	ErrInvalidCharacter = errors.New("disallowed character in path")
)

// sheetNameForbidden lists characters spreadsheet applications reject in
// sheet names.
const sheetNameForbidden = `[]:*?/\`

// containsControl reports whether s contains a control character.
func containsControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// ValidateSheetName checks a worksheet name against spreadsheet naming
// rules: non-empty, at most 31 characters, none of []:*?/\, no leading or
// trailing apostrophe, and not the reserved name "History".
func ValidateSheetName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidSheetName)
	case utf8.RuneCountInString(name) > MaxSheetNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidSheetName, MaxSheetNameLength)
	case strings.ContainsAny(name, sheetNameForbidden):
		return fmt.Errorf("%w: name contains one of %s", ErrInvalidSheetName, sheetNameForbidden)
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return fmt.Errorf("%w: name cannot start or end with an apostrophe", ErrInvalidSheetName)
	case strings.EqualFold(name, "History"):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSheetName, name)
	case containsControl(name):
		return fmt.Errorf("%w: name contains a control character", ErrInvalidSheetName)
	}
	return nil
}

// ValidatePath rejects paths that are empty, overlong, or carry null bytes
// or control characters. It does not resolve the path.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return ErrEmptyPath
	case len(path) > MaxPathLength:
		return ErrPathTooLong
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("%w: contains a null byte", ErrInvalidCharacter)
	case containsControl(path):
		return fmt.Errorf("%w: contains a control character", ErrInvalidCharacter)
	}
	return nil
}

// ValidateFilename checks a single path element: no separators, no null
// bytes or control characters, not a reserved name, and not flag-shaped.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return ErrInvalidFilename
	case len(name) > MaxFilenameLength:
		return ErrFilenameTooLong
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: contains a path separator", ErrInvalidFilename)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains a null byte", ErrInvalidFilename)
	case containsControl(name):
		return fmt.Errorf("%w: contains a control character", ErrInvalidFilename)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: leading hyphen", ErrInvalidFilename)
	}
	return nil
}

// SanitizeFilename rewrites a string into a safe single path element,
// replacing separators and stripping control characters. It fails when
// nothing safe remains.
func SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidFilename
	}

	replacer := strings.NewReplacer("/", "_", `\`, "_", "\x00", "")
	name = replacer.Replace(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	name = strings.TrimLeft(b.String(), "-")

	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

// FileType is a verified file type.
type FileType string

// The types with magic signatures, then the extension-only text types.
const (
	FileTypeZip    FileType = "zip" // xlsx and friends
	FileTypeGzip   FileType = "gzip"
	FileTypeXZ     FileType = "xz"
	FileTypeSQLite FileType = "sqlite"

	FileTypeXML  FileType = "xml"
	FileTypeYAML FileType = "yaml"
	FileTypeJSON FileType = "json"
	FileTypeText FileType = "text"

	FileTypeUnknown FileType = "unknown"
)

// sniffLen is how much of the file header type detection reads.
const sniffLen = 512

// signatures maps leading magic bytes to file types.
var signatures = []struct {
	kind   FileType
	prefix []byte
}{
	{FileTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3")},
}

// extensionTypes maps filename extensions to the type they claim.
var extensionTypes = map[string]FileType{
	".xlsx":    FileTypeZip,
	".xlsm":    FileTypeZip,
	".xltx":    FileTypeZip,
	".zip":     FileTypeZip,
	".xz":      FileTypeXZ,
	".gz":      FileTypeGzip,
	".sqlite":  FileTypeSQLite,
	".sqlite3": FileTypeSQLite,
	".db":      FileTypeSQLite,
	".xml":     FileTypeXML,
	".rels":    FileTypeXML,
	".yaml":    FileTypeYAML,
	".yml":     FileTypeYAML,
	".json":    FileTypeJSON,
	".txt":     FileTypeText,
	".csv":     FileTypeText,
	".md":      FileTypeText,
}

// ValidateFileType verifies that a file's content matches what its name
// claims, by magic bytes. Text formats have no reliable signature and pass
// on a textual-content check instead. A mismatch between a detected binary
// type and the claimed type is an error.
func ValidateFileType(r io.Reader, name string) (FileType, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FileTypeUnknown, fmt.Errorf("read file header: %w", err)
	}
	head = head[:n]

	detected := sniffMagic(head)
	claimed := typeForName(name)

	switch {
	case detected == claimed:
		return detected, nil
	case detected == FileTypeUnknown && claimed.textual():
		if looksTextual(head) {
			return claimed, nil
		}
	case detected == FileTypeUnknown:
		return claimed, nil
	case claimed == FileTypeUnknown:
		return detected, nil
	}
	return FileTypeUnknown, fmt.Errorf("file type mismatch: extension suggests %s but content is %s", claimed, detected)
}

// textual reports whether the type carries no magic signature.
func (t FileType) textual() bool {
	switch t {
	case FileTypeXML, FileTypeYAML, FileTypeJSON, FileTypeText:
		return true
	}
	return false
}

// sniffMagic matches the buffer head against known signatures.
func sniffMagic(head []byte) FileType {
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.prefix) {
			return sig.kind
		}
	}
	return FileTypeUnknown
}

// typeForName returns the type the filename extension claims.
func typeForName(name string) FileType {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return FileTypeUnknown
}

// looksTextual reports whether the buffer reads as text: no null bytes and
// almost no control characters outside tab, newline, and carriage return.
func looksTextual(head []byte) bool {
	if len(head) == 0 || bytes.IndexByte(head, 0) != -1 {
		return false
	}

	var text, binary int
	for _, b := range head {
		switch {
		case b == '\t' || b == '\n' || b == '\r':
			text++
		case b < 0x20:
			binary++
		case b <= 0x7e:
			text++
		}
		// Bytes above 0x7e are UTF-8 sequence bytes, counted as neither
	}
	return text > 0 && float64(text)/float64(text+binary) > 0.95
}
