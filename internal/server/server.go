// Package server provides the cellnote preview server: a small HTTP API
// around one in-memory workbook, with a websocket feed of applied
// annotations for the embedded preview page.
package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cellnote/cellnote/core/xlsx"
	"github.com/cellnote/cellnote/internal/logging"
)

// Config holds preview server configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string
	// WorkbookPath is the file the served workbook was loaded from. Used
	// for display and the download filename only; the server never writes
	// back to it.
	WorkbookPath string
	// Version is reported by /health.
	Version string
}

// Server owns the served workbook and the websocket hub. Workbook access
// goes through the mutex; the underlying container is not safe for
// concurrent mutation.
type Server struct {
	cfg     Config
	hub     *Hub
	started time.Time

	mu       sync.Mutex
	workbook *xlsx.Workbook
}

// New creates a preview server around wb.
func New(cfg Config, wb *xlsx.Workbook) *Server {
	return &Server{
		cfg:      cfg,
		hub:      NewHub(),
		started:  time.Now(),
		workbook: wb,
	}
}

// Handler returns the routed handler wrapped in the middleware chain:
// security headers inside, request ID and request logging outside.
func (s *Server) Handler() http.Handler {
	handler := securityHeaders(previewCSP(), s.routes())
	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/compose", s.handleCompose)
	mux.HandleFunc("/annotate", s.handleAnnotate)
	mux.HandleFunc("/strings", s.handleStrings)
	mux.HandleFunc("/workbook", s.handleWorkbook)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// Start runs the hub and serves until the listener fails. It blocks.
func (s *Server) Start() error {
	go s.hub.Run()

	logging.ServerStartup("preview", "http", addrPort(s.cfg.Addr),
		"addr", s.cfg.Addr,
		"workbook", s.cfg.WorkbookPath)

	return http.ListenAndServe(s.cfg.Addr, s.Handler())
}

// Hub exposes the websocket hub, mainly so tests can observe client counts.
func (s *Server) Hub() *Hub {
	return s.hub
}

func addrPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
