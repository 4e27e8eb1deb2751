// Command cellnote annotates xlsx workbook cells with superscript and
// subscript markers. It rewrites a cell as a three-run rich string in the
// shared-string pool: base text, styled marker, remaining base text.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/cellnote/cellnote/core/annotate"
	"github.com/cellnote/cellnote/core/backup"
	"github.com/cellnote/cellnote/core/cellref"
	"github.com/cellnote/cellnote/core/fingerprint"
	"github.com/cellnote/cellnote/core/ledger"
	"github.com/cellnote/cellnote/core/style"
	"github.com/cellnote/cellnote/core/xlsx"
	"github.com/cellnote/cellnote/core/xmldoc"
	"github.com/cellnote/cellnote/internal/config"
	"github.com/cellnote/cellnote/internal/logging"
	"github.com/cellnote/cellnote/internal/server"
	"github.com/cellnote/cellnote/internal/validation"
)

const version = "0.1.0"

// CLI defines the command-line interface for cellnote.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" default:"text"`
	Config    string `name:"config" short:"c" help:"Directory to read cellnote.yaml from" type:"path"`

	Annotate AnnotateCmd  `cmd:"" help:"Rewrite a cell as base text plus a styled marker"`
	Compose  ComposeCmd   `cmd:"" help:"Print the shared-string markup for an annotation"`
	Inspect  InspectGroup `cmd:"" help:"Inspect workbook internals (strings, sheets, query)"`
	New      NewCmd       `cmd:"" help:"Create a starter workbook"`
	Ledger   LedgerGroup  `cmd:"" help:"Annotation ledger operations"`
	Restore  RestoreCmd   `cmd:"" help:"Restore a workbook from a backup snapshot"`
	Serve    ServeCmd     `cmd:"" help:"Start the preview server"`
	Version  VersionCmd   `cmd:"" help:"Print version information"`
}

// StyleFlags are the run styling options shared by annotate and compose.
// Unset flags fall back to the config file, then to the composer defaults.
type StyleFlags struct {
	Script    string `help:"Marker placement: superscript, subscript, or none"`
	Font      string `help:"Font name"`
	Size      int    `help:"Font size in points"`
	Color     string `help:"Font color as RGB hex, for example FF0000"`
	Bold      bool   `help:"Bold all three runs"`
	Italic    bool   `help:"Italicize all three runs"`
	Underline bool   `help:"Underline all three runs"`
}

// merge lays the flags over the configured base style. Boolean flags can
// only turn a feature on; the config file turns it off.
func (f *StyleFlags) merge(base style.Style) style.Style {
	s := base
	if f.Script != "" {
		s.Script = style.Script(f.Script)
	}
	if f.Font != "" {
		s.Font = f.Font
	}
	if f.Size != 0 {
		s.Size = f.Size
	}
	if f.Color != "" {
		s.Color = f.Color
	}
	if f.Bold {
		s.Bold = true
	}
	if f.Italic {
		s.Italic = true
	}
	if f.Underline {
		s.Underline = true
	}
	return s
}

// AnnotateCmd rewrites one workbook cell as a three-run rich string.
type AnnotateCmd struct {
	Workbook string `arg:"" help:"Path to the workbook" type:"existingfile"`
	Cell     string `required:"" help:"Target cell in A1 notation (sheet prefix allowed)"`
	Text     string `required:"" help:"Base cell text the marker attaches to"`
	Marker   string `required:"" help:"Annotation text, for example 1,2,3"`
	Sheet    string `help:"Target sheet (default: cell prefix, then first sheet)"`
	At       int    `help:"Rune offset where the base text splits around the marker (default: append)" default:"-1"`
	Out      string `help:"Output path (default: rewrite in place)" type:"path"`
	DryRun   bool   `help:"Print the composed fragment and touch nothing"`
	Backup   bool   `help:"Snapshot the workbook before an in-place rewrite" default:"true" negatable:""`
	Ledger   bool   `help:"Record the annotation even when the config leaves the ledger off"`
	StyleFlags
}

func (c *AnnotateCmd) Run() error {
	resolved, err := resolveConfig()
	if err != nil {
		return err
	}

	ref, err := cellref.Parse(c.Cell)
	if err != nil {
		return fmt.Errorf("invalid cell reference: %w", err)
	}

	req := annotate.Request{
		Sheet:    c.Sheet,
		Cell:     ref,
		BaseText: c.Text,
		Marker:   c.Marker,
		SplitAt:  c.At,
		Style:    c.StyleFlags.merge(resolved.Style),
	}

	if c.DryRun {
		fragment, err := annotate.Compose(req)
		if err != nil {
			return err
		}
		fmt.Println(fragment.MarkupXML())
		fmt.Printf("Text: %s\n", fragment.Text())
		return nil
	}

	out := c.Out
	if out == "" {
		out = c.Workbook
	}

	var hashBefore string
	recordLedger := c.Ledger || resolved.LedgerEnabled
	if recordLedger {
		hashBefore, err = fingerprint.HashFile(c.Workbook)
		if err != nil {
			return fmt.Errorf("failed to hash workbook: %w", err)
		}
	}

	wb, err := xlsx.Open(c.Workbook)
	if err != nil {
		return err
	}

	result, err := annotate.Apply(wb, req)
	if err != nil {
		return err
	}

	if out == c.Workbook && c.Backup && resolved.BackupEnabled {
		snapshot, err := backup.Create(c.Workbook, resolved.BackupCompression)
		if err != nil {
			return fmt.Errorf("failed to snapshot workbook: %w", err)
		}
		fmt.Printf("Backup: %s\n", snapshot)
	}

	if err := wb.Save(out); err != nil {
		return err
	}

	fmt.Printf("Annotated: %s\n", out)
	fmt.Printf("  Cell: %s!%s\n", result.Sheet, result.Cell)
	fmt.Printf("  Slot: %d\n", result.Slot)
	fmt.Printf("  Text: %s\n", result.Fragment.Text())

	if recordLedger {
		hashAfter, err := fingerprint.HashFile(out)
		if err != nil {
			return fmt.Errorf("failed to hash workbook: %w", err)
		}
		led, err := ledger.Open(resolved.LedgerPath)
		if err != nil {
			return err
		}
		defer led.Close()

		entry, err := led.Record(context.Background(), ledger.Entry{
			Workbook:   out,
			Sheet:      result.Sheet,
			Cell:       result.Cell,
			BaseText:   c.Text,
			Marker:     c.Marker,
			Script:     string(result.Fragment.Annotation().Style.Script),
			Slot:       result.Slot,
			HashBefore: hashBefore,
			HashAfter:  hashAfter,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Ledger: %s\n", entry.ID)
	}

	return nil
}

// ComposeCmd prints the shared-string markup for an annotation without
// touching any workbook.
type ComposeCmd struct {
	Text   string `required:"" help:"Base text"`
	Marker string `required:"" help:"Annotation text"`
	At     int    `help:"Rune offset where the base text splits around the marker (default: append)" default:"-1"`
	HTML   bool   `help:"Print an HTML preview instead of worksheet markup"`
	StyleFlags
}

func (c *ComposeCmd) Run() error {
	resolved, err := resolveConfig()
	if err != nil {
		return err
	}

	fragment, err := annotate.Compose(annotate.Request{
		BaseText: c.Text,
		Marker:   c.Marker,
		SplitAt:  c.At,
		Style:    c.StyleFlags.merge(resolved.Style),
	})
	if err != nil {
		return err
	}

	if c.HTML {
		fmt.Println(fragment.HTML())
		return nil
	}
	fmt.Println(fragment.MarkupXML())
	return nil
}

// InspectGroup contains workbook inspection operations.
type InspectGroup struct {
	Strings StringsCmd `cmd:"" help:"List the shared-string pool"`
	Sheets  SheetsCmd  `cmd:"" help:"List sheet names"`
	Query   QueryCmd   `cmd:"" help:"Run an XPath query against a workbook part"`
}

// StringsCmd lists the shared-string pool of a workbook.
type StringsCmd struct {
	Workbook string `arg:"" help:"Path to the workbook" type:"existingfile"`
	Rich     bool   `help:"Only show rich entries"`
}

func (c *StringsCmd) Run() error {
	wb, err := xlsx.Open(c.Workbook)
	if err != nil {
		return err
	}
	pool, err := wb.Pool()
	if err != nil {
		return err
	}

	rich := 0
	for i, entry := range pool.Entries() {
		if entry.Rich {
			rich++
		} else if c.Rich {
			continue
		}
		kind := "plain"
		if entry.Rich {
			kind = "rich"
		}
		fmt.Printf("%4d  %-5s  %s\n", i, kind, entry.Text)
	}
	fmt.Printf("%d shared strings (%d rich)\n", pool.Len(), rich)
	return nil
}

// SheetsCmd lists the sheet names of a workbook.
type SheetsCmd struct {
	Workbook string `arg:"" help:"Path to the workbook" type:"existingfile"`
}

func (c *SheetsCmd) Run() error {
	wb, err := xlsx.Open(c.Workbook)
	if err != nil {
		return err
	}
	for i, name := range wb.SheetNames() {
		fmt.Printf("%4d  %s\n", i+1, name)
	}
	return nil
}

// QueryCmd runs an ad-hoc XPath query against one part of a workbook.
type QueryCmd struct {
	Workbook string `arg:"" help:"Path to the workbook" type:"existingfile"`
	XPath    string `arg:"" name:"xpath" help:"XPath expression"`
	Part     string `help:"Workbook part to query" default:"xl/sharedStrings.xml"`
}

func (c *QueryCmd) Run() error {
	wb, err := xlsx.Open(c.Workbook)
	if err != nil {
		return err
	}
	data, err := wb.Part(c.Part)
	if err != nil {
		return err
	}
	doc, err := xmldoc.Parse(data)
	if err != nil {
		return err
	}
	nodes, err := xmldoc.QueryAll(doc, c.XPath)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		fmt.Println(string(xmldoc.Serialize(node)))
	}
	fmt.Printf("%d match(es)\n", len(nodes))
	return nil
}

// NewCmd creates a starter workbook with one empty sheet.
type NewCmd struct {
	Out   string `arg:"" help:"Output workbook path" type:"path"`
	Sheet string `help:"Sheet name" default:"Sheet1"`
}

func (c *NewCmd) Run() error {
	if err := validation.ValidatePath(c.Out); err != nil {
		return err
	}
	if err := validation.ValidateSheetName(c.Sheet); err != nil {
		return err
	}
	wb, err := xlsx.New(c.Sheet)
	if err != nil {
		return err
	}
	if err := wb.Save(c.Out); err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", c.Out)
	return nil
}

// LedgerGroup contains ledger operations.
type LedgerGroup struct {
	List LedgerListCmd `cmd:"" help:"List recorded annotations"`
	Info LedgerInfoCmd `cmd:"" help:"Show the compiled-in SQLite driver"`
}

// LedgerListCmd lists recorded annotations, newest first.
type LedgerListCmd struct {
	Workbook string `help:"Only show annotations for this workbook path"`
	DB       string `help:"Ledger database path (default: from config)" type:"path"`
	JSON     bool   `help:"Emit JSON instead of a table"`
}

func (c *LedgerListCmd) Run() error {
	resolved, err := resolveConfig()
	if err != nil {
		return err
	}
	path := c.DB
	if path == "" {
		path = resolved.LedgerPath
	}

	led, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer led.Close()

	entries, err := led.List(context.Background(), c.Workbook)
	if err != nil {
		return err
	}

	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s!%s  slot %d  %q %s\n",
			e.Timestamp.Format(time.RFC3339), e.Workbook, e.Sheet, e.Cell,
			e.Slot, e.Marker, e.Script)
	}
	fmt.Printf("%d annotation(s)\n", len(entries))
	return nil
}

// LedgerInfoCmd prints which SQLite driver the binary was built with.
type LedgerInfoCmd struct {
	JSON bool `help:"Emit JSON"`
}

func (c *LedgerInfoCmd) Run() error {
	info := ledger.Driver()
	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(info)
	}
	fmt.Printf("Driver: %s (%s, %s)\n", info.Name, info.Kind, info.Package)
	return nil
}

// RestoreCmd restores a workbook from a backup snapshot. Compression is
// detected from the file contents, not the name.
type RestoreCmd struct {
	Backup string `arg:"" help:"Path to the backup snapshot" type:"existingfile"`
	Out    string `help:"Destination path (default: derived from the backup name)" type:"path"`
}

func (c *RestoreCmd) Run() error {
	dest := c.Out
	if dest == "" {
		derived, err := deriveRestoreDest(c.Backup)
		if err != nil {
			return err
		}
		dest = derived
	}
	if err := validation.ValidatePath(dest); err != nil {
		return err
	}
	if err := backup.Restore(c.Backup, dest); err != nil {
		return err
	}
	fmt.Printf("Restored: %s\n", dest)
	return nil
}

// deriveRestoreDest strips the snapshot suffix from a backup name:
// report.xlsx.20240101T120000Z.bak.xz restores to report.xlsx.
func deriveRestoreDest(backupPath string) (string, error) {
	idx := strings.LastIndex(backupPath, ".bak")
	if idx == -1 {
		return "", fmt.Errorf("cannot derive a destination from %q, use --out", backupPath)
	}
	stem := backupPath[:idx]
	dot := strings.LastIndex(stem, ".")
	if dot == -1 {
		return "", fmt.Errorf("cannot derive a destination from %q, use --out", backupPath)
	}
	return stem[:dot], nil
}

// ServeCmd starts the preview server.
type ServeCmd struct {
	Workbook string `arg:"" optional:"" help:"Workbook to load (default: a fresh single-sheet workbook)" type:"existingfile"`
	Addr     string `help:"Listen address (default: from config)"`
}

func (c *ServeCmd) Run() error {
	resolved, err := resolveConfig()
	if err != nil {
		return err
	}
	addr := c.Addr
	if addr == "" {
		addr = resolved.ServerAddr
	}

	var wb *xlsx.Workbook
	if c.Workbook != "" {
		wb, err = xlsx.Open(c.Workbook)
	} else {
		wb, err = xlsx.New("Sheet1")
	}
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:         addr,
		WorkbookPath: c.Workbook,
		Version:      version,
	}, wb)
	fmt.Printf("Serving on http://%s\n", addr)
	return srv.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cellnote version %s\n", version)
	return nil
}

// resolveConfig loads cellnote.yaml from the --config directory, falling
// back to the working directory.
func resolveConfig() (*config.Resolved, error) {
	dir := CLI.Config
	if dir == "" {
		dir = "."
	}
	return config.Resolve(dir)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cellnote"),
		kong.Description("Superscript and subscript annotations for xlsx workbooks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
