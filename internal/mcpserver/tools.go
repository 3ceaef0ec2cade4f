package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/notes"
	"github.com/healthdrive/healthdrive/internal/patient"
	"github.com/healthdrive/healthdrive/internal/report"
)

// searchFields is the projection used by document searches.
const searchFields = "id, name, mimeType, size, modifiedTime"

// PatientInput identifies a patient.
type PatientInput struct {
	PatientID string `json:"patient_id" jsonschema:"the patient ID, e.g. P001"`
}

// DepartmentInput identifies a patient and a department.
type DepartmentInput struct {
	PatientID  string `json:"patient_id" jsonschema:"the patient ID, e.g. P001"`
	Department string `json:"department" jsonschema:"department name, case-insensitive"`
}

// SearchInput selects a patient's documents of one type.
type SearchInput struct {
	PatientID    string `json:"patient_id" jsonschema:"the patient ID, e.g. P001"`
	DocumentType string `json:"document_type" jsonschema:"document type tag in the file name, e.g. LAB or XRAY"`
}

// LabInput selects a patient's newest lab result.
type LabInput struct {
	PatientID string `json:"patient_id" jsonschema:"the patient ID, e.g. P001"`
	TestType  string `json:"test_type,omitempty" jsonschema:"optional test type in the file name, e.g. CBC"`
}

// FolderInput lists a Drive folder by name.
type FolderInput struct {
	Folder   string `json:"folder" jsonschema:"exact name of the Drive folder"`
	PageSize int64  `json:"page_size,omitempty" jsonschema:"maximum files per page"`
	All      bool   `json:"all,omitempty" jsonschema:"follow continuation pages until the listing is complete"`
}

// NoteInput is a note to save.
type NoteInput struct {
	Message string `json:"message" jsonschema:"the note text"`
}

// NoInput is for tools without arguments.
type NoInput struct{}

func (s *Server) registerPatientTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_patient_info",
		Description: "Retrieve basic information about a patient",
	}, s.handlePatientInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_department_history",
		Description: "Get a patient's history from a specific department",
	}, s.handleDepartmentHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_all_departments",
		Description: "List the departments a patient has records in",
	}, s.handleAllDepartments)
}

func (s *Server) registerDocumentTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_medical_documents",
		Description: "Search Google Drive for a patient's medical documents of a given type",
	}, s.handleSearchDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_latest_lab_results",
		Description: "Retrieve the content of a patient's most recent laboratory result",
	}, s.handleLatestLab)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_folder_files",
		Description: "List the files in a Google Drive folder, found by name",
	}, s.handleListFolder)
}

func (s *Server) registerNoteTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_note",
		Description: "Append a note to the sticky note file",
	}, s.handleAddNote)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_notes",
		Description: "Read all notes from the sticky note file",
	}, s.handleReadNotes)
}

func (s *Server) lookupPatient(ctx context.Context, id string) (*patient.Patient, *mcp.CallToolResult) {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, patient.ErrNotFound) {
			s.logger.Error("patient lookup failed", slog.String("patient_id", id), slog.String("error", err.Error()))
		}

		return nil, errorResult(report.Failure(err))
	}

	return p, nil
}

func (s *Server) handlePatientInfo(ctx context.Context, _ *mcp.CallToolRequest, in PatientInput) (res *mcp.CallToolResult, _ any, _ error) {
	_, done := s.call("get_patient_info", slog.String("patient_id", in.PatientID))
	defer func() { done(res) }()

	p, fail := s.lookupPatient(ctx, in.PatientID)
	if fail != nil {
		return fail, nil, nil
	}

	return textResult(report.PatientInfo(p)), nil, nil
}

func (s *Server) handleDepartmentHistory(ctx context.Context, _ *mcp.CallToolRequest, in DepartmentInput) (res *mcp.CallToolResult, _ any, _ error) {
	_, done := s.call("get_department_history",
		slog.String("patient_id", in.PatientID),
		slog.String("department", in.Department),
	)
	defer func() { done(res) }()

	p, fail := s.lookupPatient(ctx, in.PatientID)
	if fail != nil {
		return fail, nil, nil
	}

	_, rec, err := p.Department(in.Department)
	if err != nil {
		return errorResult(report.NoDepartmentRecords(in.Department)), nil, nil
	}

	return textResult(report.DepartmentHistory(p, in.Department, rec)), nil, nil
}

func (s *Server) handleAllDepartments(ctx context.Context, _ *mcp.CallToolRequest, in PatientInput) (res *mcp.CallToolResult, _ any, _ error) {
	_, done := s.call("get_all_departments", slog.String("patient_id", in.PatientID))
	defer func() { done(res) }()

	p, fail := s.lookupPatient(ctx, in.PatientID)
	if fail != nil {
		return fail, nil, nil
	}

	return textResult(report.Departments(p)), nil, nil
}

// documents returns a Drive client or a tool error.
func (s *Server) documents(ctx context.Context, logger *slog.Logger) (Documents, *mcp.CallToolResult) {
	docs, err := s.docs(ctx)
	if err != nil {
		logger.Warn("drive unavailable", slog.String("error", err.Error()))
		return nil, errorResult(report.Failure(err))
	}

	return docs, nil
}

func driveFailure(logger *slog.Logger, err error) *mcp.CallToolResult {
	logger.Warn("drive request failed", slog.String("error", err.Error()))
	return errorResult(report.Failure(err))
}

func (s *Server) handleSearchDocuments(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (res *mcp.CallToolResult, _ any, _ error) {
	logger, done := s.call("search_medical_documents",
		slog.String("patient_id", in.PatientID),
		slog.String("document_type", in.DocumentType),
	)
	defer func() { done(res) }()

	id := patient.NormalizeID(in.PatientID)
	docType := strings.TrimSpace(in.DocumentType)

	if id == "" || docType == "" {
		return errorResult("patient_id and document_type are required."), nil, nil
	}

	docs, fail := s.documents(ctx, logger)
	if fail != nil {
		return fail, nil, nil
	}

	objs, err := docs.Search(ctx,
		gdrive.Query{NameContains: []string{id, docType}},
		gdrive.ListOptions{PageSize: s.pageSize, Fields: searchFields},
	)
	if err != nil {
		return driveFailure(logger, err), nil, nil
	}

	return textResult(report.Documents(id, docType, objs)), nil, nil
}

func (s *Server) handleLatestLab(ctx context.Context, _ *mcp.CallToolRequest, in LabInput) (res *mcp.CallToolResult, _ any, _ error) {
	logger, done := s.call("get_latest_lab_results",
		slog.String("patient_id", in.PatientID),
		slog.String("test_type", in.TestType),
	)
	defer func() { done(res) }()

	id := patient.NormalizeID(in.PatientID)
	if id == "" {
		return errorResult("patient_id is required."), nil, nil
	}

	docs, fail := s.documents(ctx, logger)
	if fail != nil {
		return fail, nil, nil
	}

	terms := []string{id, "LAB"}
	if tt := strings.TrimSpace(in.TestType); tt != "" {
		terms = append(terms, tt)
	}

	objs, err := docs.Search(ctx,
		gdrive.Query{NameContains: terms, Latest: true},
		gdrive.ListOptions{Fields: searchFields},
	)
	if err != nil {
		return driveFailure(logger, err), nil, nil
	}

	if len(objs) == 0 {
		return textResult(report.NoLabResults), nil, nil
	}

	content, err := docs.FetchContent(ctx, objs[0].ID)
	if err != nil {
		return driveFailure(logger, err), nil, nil
	}

	return textResult(report.LabResult(objs[0], content)), nil, nil
}

func (s *Server) handleListFolder(ctx context.Context, _ *mcp.CallToolRequest, in FolderInput) (res *mcp.CallToolResult, _ any, _ error) {
	logger, done := s.call("list_folder_files",
		slog.String("folder", in.Folder),
		slog.Int64("page_size", in.PageSize),
		slog.Bool("all", in.All),
	)
	defer func() { done(res) }()

	if strings.TrimSpace(in.Folder) == "" {
		return errorResult("folder is required."), nil, nil
	}

	docs, fail := s.documents(ctx, logger)
	if fail != nil {
		return fail, nil, nil
	}

	folder, objs, err := docs.ListFolder(ctx, in.Folder, gdrive.ListOptions{
		PageSize: in.PageSize,
		All:      in.All,
	})
	if err != nil {
		return driveFailure(logger, err), nil, nil
	}

	return textResult(report.FolderListing(folder, objs)), nil, nil
}

func (s *Server) handleAddNote(_ context.Context, _ *mcp.CallToolRequest, in NoteInput) (res *mcp.CallToolResult, _ any, _ error) {
	logger, done := s.call("add_note")
	defer func() { done(res) }()

	if err := s.notes.Add(in.Message); err != nil {
		logger.Warn("saving note failed", slog.String("error", err.Error()))
		return errorResult(report.Failure(err)), nil, nil
	}

	return textResult(report.NoteSaved), nil, nil
}

func (s *Server) handleReadNotes(_ context.Context, _ *mcp.CallToolRequest, _ NoInput) (res *mcp.CallToolResult, _ any, _ error) {
	logger, done := s.call("read_notes")
	defer func() { done(res) }()

	content, err := s.notes.All()
	if errors.Is(err, notes.ErrNoNotes) {
		return textResult(report.NoNotes), nil, nil
	}

	if err != nil {
		logger.Warn("reading notes failed", slog.String("error", err.Error()))
		return errorResult(report.Failure(err)), nil, nil
	}

	return textResult(content), nil, nil
}
