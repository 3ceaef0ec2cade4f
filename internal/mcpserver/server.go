// Package mcpserver exposes patient lookups, the note store, and Google
// Drive document search as Model Context Protocol tools, resources, and
// prompts.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/patient"
)

// DefaultSearchPageSize caps document search results.
const DefaultSearchPageSize = 10

// Transports accepted by Run.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const shutdownTimeout = 5 * time.Second

// Documents is the subset of the Drive client the tools use.
type Documents interface {
	Search(ctx context.Context, q gdrive.Query, opts gdrive.ListOptions) ([]gdrive.Object, error)
	FetchContent(ctx context.Context, objectID string) ([]byte, error)
	ListFolder(ctx context.Context, name string, opts gdrive.ListOptions) (gdrive.Container, []gdrive.Object, error)
}

// DocumentsFunc returns a Drive client for one tool call. It runs per call
// so a missing credential surfaces as a tool error, not a startup failure.
type DocumentsFunc func(ctx context.Context) (Documents, error)

// NoteStore is the note file used by add_note, read_notes, and the
// notes://latest resource.
type NoteStore interface {
	Add(msg string) error
	All() (string, error)
	Latest() (string, error)
}

// Config wires the server's collaborators.
type Config struct {
	Name    string
	Version string

	Patients  patient.Repository
	Notes     NoteStore
	Documents DocumentsFunc

	// SearchPageSize caps search_medical_documents results. Zero selects
	// DefaultSearchPageSize.
	SearchPageSize int64

	Logger *slog.Logger
}

// Server is a configured MCP server.
type Server struct {
	server   *mcp.Server
	patients patient.Repository
	notes    NoteStore
	docs     DocumentsFunc
	pageSize int64
	logger   *slog.Logger
}

// New builds the server and registers every tool, resource, and prompt.
func New(cfg Config) (*Server, error) {
	if cfg.Patients == nil {
		return nil, errors.New("mcpserver: patient repository is required")
	}

	if cfg.Notes == nil {
		return nil, errors.New("mcpserver: note store is required")
	}

	if cfg.Documents == nil {
		return nil, errors.New("mcpserver: documents factory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "healthdrive"
	}

	pageSize := cfg.SearchPageSize
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: cfg.Version}, &mcp.ServerOptions{
			Logger: logger,
		}),
		patients: cfg.Patients,
		notes:    cfg.Notes,
		docs:     cfg.Documents,
		pageSize: pageSize,
		logger:   logger,
	}

	s.registerPatientTools()
	s.registerDocumentTools()
	s.registerNoteTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves until ctx is canceled or the client disconnects. transport is
// TransportStdio or TransportHTTP; addr is used only for HTTP.
func (s *Server) Run(ctx context.Context, transport, addr string) error {
	switch transport {
	case "", TransportStdio:
		s.logger.Info("serving MCP on stdio")

		if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcpserver: stdio: %w", err)
		}

		return nil
	case TransportHTTP:
		return s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("mcpserver: unknown transport %q", transport)
	}
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("serving MCP over HTTP", slog.String("addr", addr), slog.String("path", "/mcp"))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("mcpserver: http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcpserver: http shutdown: %w", err)
		}

		return nil
	}
}

// call logs the start and end of one tool invocation under a fresh call ID.
func (s *Server) call(tool string, attrs ...any) (*slog.Logger, func(res *mcp.CallToolResult)) {
	logger := s.logger.With(slog.String("tool", tool), slog.String("call_id", uuid.NewString()))
	start := time.Now()

	logger.Info("tool call", attrs...)

	return logger, func(res *mcp.CallToolResult) {
		logger.Info("tool done",
			slog.Bool("is_error", res != nil && res.IsError),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
