package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cellnote/cellnote/core/annotate"
	"github.com/cellnote/cellnote/core/cellref"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/richtext"
	"github.com/cellnote/cellnote/core/style"
	"github.com/cellnote/cellnote/internal/logging"
	"github.com/cellnote/cellnote/internal/validation"
)

// envelope is the JSON wrapper shared by every API endpoint. The preview
// page switches on success and then reads data or error.message, so the
// field names here are part of the wire contract.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorInfo `json:"error,omitempty"`
	Meta    *replyMeta `json:"meta,omitempty"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type replyMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StyleRequest mirrors the CLI style flags.
type StyleRequest struct {
	Font      string `json:"font,omitempty"`
	Size      int    `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Script    string `json:"script,omitempty"`
}

func (sr StyleRequest) toStyle() style.Style {
	return style.Style{
		Font:      sr.Font,
		Size:      sr.Size,
		Color:     sr.Color,
		Bold:      sr.Bold,
		Italic:    sr.Italic,
		Underline: sr.Underline,
		Script:    style.Script(sr.Script),
	}
}

// ComposeRequest is the body of POST /compose. A missing split_at appends
// the marker after the whole base text.
type ComposeRequest struct {
	BaseText string       `json:"base_text"`
	Marker   string       `json:"marker"`
	SplitAt  *int         `json:"split_at,omitempty"`
	Style    StyleRequest `json:"style"`
}

func (cr ComposeRequest) splitAt() int {
	if cr.SplitAt == nil {
		return annotate.AtEnd
	}
	return *cr.SplitAt
}

// AnnotateRequest adds the workbook location to a compose request.
type AnnotateRequest struct {
	ComposeRequest
	Sheet string `json:"sheet,omitempty"`
	Cell  string `json:"cell"`
}

// RunView is one composed run in a preview response.
type RunView struct {
	Text      string `json:"text"`
	Script    string `json:"script"`
	Font      string `json:"font"`
	Size      int    `json:"size"`
	Color     string `json:"color"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
}

// ComposeResult is the preview of a composed fragment.
type ComposeResult struct {
	Runs []RunView `json:"runs"`
	Text string    `json:"text"`
	XML  string    `json:"xml"`
	HTML string    `json:"html"`
}

// AnnotateResult reports an applied annotation.
type AnnotateResult struct {
	Sheet string `json:"sheet"`
	Cell  string `json:"cell"`
	Slot  int    `json:"slot"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
}

// StringEntry is one shared-string pool entry in /strings.
type StringEntry struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Rich  bool   `json:"rich,omitempty"`
}

// HealthInfo is the /health response.
type HealthInfo struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Uptime   string   `json:"uptime"`
	Workbook string   `json:"workbook,omitempty"`
	Sheets   []string `json:"sheets"`
	Strings  int      `json:"strings"`
	Clients  int      `json:"clients"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint: "+r.URL.Path)
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(pageHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	s.mu.Lock()
	sheets := s.workbook.SheetNames()
	pool, err := s.workbook.Pool()
	s.mu.Unlock()
	if err != nil {
		respondForError(w, err)
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:   "healthy",
		Version:  s.cfg.Version,
		Uptime:   time.Since(s.started).String(),
		Workbook: s.cfg.WorkbookPath,
		Sheets:   sheets,
		Strings:  pool.Len(),
		Clients:  s.hub.ClientCount(),
	})
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req ComposeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fragment, err := annotate.Compose(annotate.Request{
		BaseText: req.BaseText,
		Marker:   req.Marker,
		SplitAt:  req.splitAt(),
		Style:    req.Style.toStyle(),
	})
	if err != nil {
		respondForError(w, err)
		return
	}

	respond(w, http.StatusOK, composeResult(fragment))
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req AnnotateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ref, err := cellref.Parse(req.Cell)
	if err != nil {
		respondForError(w, err)
		return
	}

	s.mu.Lock()
	result, err := annotate.Apply(s.workbook, annotate.Request{
		Sheet:    req.Sheet,
		Cell:     ref,
		BaseText: req.BaseText,
		Marker:   req.Marker,
		SplitAt:  req.splitAt(),
		Style:    req.Style.toStyle(),
	})
	s.mu.Unlock()
	if err != nil {
		respondForError(w, err)
		return
	}

	s.hub.Broadcast(Event{
		Type:   "annotate",
		Sheet:  result.Sheet,
		Cell:   result.Cell,
		Slot:   result.Slot,
		Marker: req.Marker,
		Text:   result.Fragment.Text(),
	})

	respond(w, http.StatusOK, AnnotateResult{
		Sheet: result.Sheet,
		Cell:  result.Cell,
		Slot:  result.Slot,
		Text:  result.Fragment.Text(),
		HTML:  result.Fragment.HTML(),
	})
}

func (s *Server) handleStrings(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	s.mu.Lock()
	pool, err := s.workbook.Pool()
	s.mu.Unlock()
	if err != nil {
		respondForError(w, err)
		return
	}

	entries := pool.Entries()
	out := make([]StringEntry, len(entries))
	for i, e := range entries {
		out[i] = StringEntry{Index: i, Text: e.Text, Rich: e.Rich}
	}

	respondList(w, out, len(out))
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	s.mu.Lock()
	data, err := s.workbook.Bytes()
	s.mu.Unlock()
	if err != nil {
		respondForError(w, err)
		return
	}

	filename := "workbook.xlsx"
	if s.cfg.WorkbookPath != "" {
		safe, err := validation.SanitizeFilename(filepath.Base(s.cfg.WorkbookPath))
		if err != nil {
			logging.SecurityEvent("unsafe_download_filename", "server", "path", s.cfg.WorkbookPath)
		} else {
			filename = safe
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(data)
}

func composeResult(f *richtext.Fragment) ComposeResult {
	runs := f.Runs()
	views := make([]RunView, len(runs))
	for i, run := range runs {
		views[i] = RunView{
			Text:      run.Text,
			Script:    string(run.Style.Script),
			Font:      run.Style.Font,
			Size:      run.Style.Size,
			Color:     run.Style.Color,
			Bold:      run.Style.Bold,
			Italic:    run.Style.Italic,
			Underline: run.Style.Underline,
		}
	}
	return ComposeResult{
		Runs: views,
		Text: f.Text(),
		XML:  f.MarkupXML(),
		HTML: f.HTML(),
	}
}

// allowMethod rejects any method other than want with a JSON 405.
func allowMethod(w http.ResponseWriter, r *http.Request, want string) bool {
	if r.Method == want {
		return true
	}
	w.Header().Set("Allow", want)
	respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use "+want)
	return false
}

// decodeBody parses a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "request body: "+err.Error())
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta:    &replyMeta{Total: total},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Error:   &errorInfo{Code: code, Message: message},
	})
}

// respondForError translates the error taxonomy into HTTP statuses.
func respondForError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, errors.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrAmbiguous):
		status, code = http.StatusConflict, "AMBIGUOUS"
	case errors.Is(err, errors.ErrUnsupported):
		status, code = http.StatusUnprocessableEntity, "UNSUPPORTED"
	}
	respondError(w, status, code, err.Error())
}

// writeJSON stamps the meta block and encodes the envelope. Every reply,
// success or failure, goes through here.
func writeJSON(w http.ResponseWriter, status int, e envelope) {
	if e.Meta == nil {
		e.Meta = &replyMeta{}
	}
	e.Meta.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		logging.Error("encode response", "error", err)
	}
}
