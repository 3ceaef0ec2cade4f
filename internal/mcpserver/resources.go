package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/healthdrive/healthdrive/internal/notes"
	"github.com/healthdrive/healthdrive/internal/report"
)

const (
	latestNoteURI  = "notes://latest"
	greetingPrefix = "greeting://"
	textMIME       = "text/plain"
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         latestNoteURI,
		Name:        "latest_note",
		Description: "The most recently added note",
		MIMEType:    textMIME,
	}, s.readLatestNote)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: greetingPrefix + "{name}",
		Name:        "greeting",
		Description: "A personalized greeting",
		MIMEType:    textMIME,
	}, s.readGreeting)
}

func (s *Server) registerPrompts() {
	s.server.AddPrompt(&mcp.Prompt{
		Name:        "note_summary_prompt",
		Description: "Ask the model to summarize the current notes",
	}, s.noteSummaryPrompt)
}

func textResource(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: textMIME, Text: text}},
	}
}

func (s *Server) readLatestNote(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	latest, err := s.notes.Latest()
	if errors.Is(err, notes.ErrNoNotes) {
		return textResource(req.Params.URI, report.NoNotes), nil
	}

	if err != nil {
		s.logger.Warn("reading latest note failed", slog.String("error", err.Error()))
		return nil, err
	}

	return textResource(req.Params.URI, latest), nil
}

func (s *Server) readGreeting(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	raw := strings.TrimPrefix(req.Params.URI, greetingPrefix)

	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}

	return textResource(req.Params.URI, report.Greeting(name)), nil
}

func (s *Server) noteSummaryPrompt(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	content, err := s.notes.All()
	if err != nil && !errors.Is(err, notes.ErrNoNotes) {
		return nil, err
	}

	return &mcp.GetPromptResult{
		Description: "Summarize the current notes",
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: report.NoteSummaryPrompt(content)},
		}},
	}, nil
}
