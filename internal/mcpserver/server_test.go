package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/notes"
	"github.com/healthdrive/healthdrive/internal/patient"
)

// fakeDocuments matches name predicates against an in-memory file set.
type fakeDocuments struct {
	files    []gdrive.Object
	content  map[string][]byte
	folders  map[string]gdrive.Container
	err      error
	queries  []gdrive.Query
	listOpts []gdrive.ListOptions
}

func (f *fakeDocuments) Search(_ context.Context, q gdrive.Query, opts gdrive.ListOptions) ([]gdrive.Object, error) {
	f.queries = append(f.queries, q)
	f.listOpts = append(f.listOpts, opts)

	if f.err != nil {
		return nil, f.err
	}

	var out []gdrive.Object

	for _, o := range f.files {
		match := true

		for _, term := range q.NameContains {
			if !strings.Contains(strings.ToLower(o.Name), strings.ToLower(term)) {
				match = false
			}
		}

		if match {
			out = append(out, o)
		}
	}

	if q.Latest && len(out) > 1 {
		newest := out[0]
		for _, o := range out[1:] {
			if o.ModifiedAt.After(newest.ModifiedAt) {
				newest = o
			}
		}

		out = []gdrive.Object{newest}
	}

	return out, nil
}

func (f *fakeDocuments) FetchContent(_ context.Context, id string) ([]byte, error) {
	data, ok := f.content[id]
	if !ok {
		return nil, &gdrive.Error{Op: "fetch content", Kind: gdrive.ErrFetch, Message: "connection reset"}
	}

	return data, nil
}

func (f *fakeDocuments) ListFolder(_ context.Context, name string, _ gdrive.ListOptions) (gdrive.Container, []gdrive.Object, error) {
	c, ok := f.folders[name]
	if !ok {
		return gdrive.Container{}, nil, &gdrive.Error{
			Op: "resolve folder", Kind: gdrive.ErrNotFound, Message: fmt.Sprintf("no folder named %q", name),
		}
	}

	return c, f.files, nil
}

func fixtureDocuments() *fakeDocuments {
	return &fakeDocuments{
		files: []gdrive.Object{
			{
				ID: "lab-old", Name: "P001_LAB_CBC_2024.txt", MIMEType: "text/plain",
				ModifiedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			},
			{
				ID: "lab-new", Name: "P001_LAB_2025.txt", MIMEType: "text/plain",
				ModifiedAt: time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC),
			},
			{
				ID: "xray", Name: "P002_XRAY_2025.png", MIMEType: "image/png",
				ModifiedAt: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		content: map[string][]byte{
			"lab-new": []byte("Cholesterol: 180 mg/dL"),
			"lab-old": []byte("CBC: normal"),
		},
		folders: map[string]gdrive.Container{"Lab Reports": {ID: "folder-1", Name: "Lab Reports"}},
	}
}

type testEnv struct {
	session *mcp.ClientSession
	notes   *notes.Store
	docs    *fakeDocuments
}

func newTestEnv(t *testing.T, docsErr error) *testEnv {
	t.Helper()

	store, err := notes.Open(filepath.Join(t.TempDir(), "notes.txt"))
	require.NoError(t, err)

	docs := fixtureDocuments()

	srv, err := New(Config{
		Version:  "test",
		Patients: patient.NewMemoryRepository(patient.DemoPatients()...),
		Notes:    store,
		Documents: func(context.Context) (Documents, error) {
			if docsErr != nil {
				return nil, docsErr
			}

			return docs, nil
		},
		Logger: slog.Default(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	ss, err := srv.MCP().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)

	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	return &testEnv{session: cs, notes: store, docs: docs}
}

// callTool returns the text of the result and whether it is an error.
func (e *testEnv) callTool(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()

	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])

	return text.Text, res.IsError
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}

	assert.ElementsMatch(t, []string{
		"get_patient_info", "get_department_history", "get_all_departments",
		"search_medical_documents", "get_latest_lab_results", "list_folder_files",
		"add_note", "read_notes",
	}, names)
}

func TestGetPatientInfo(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "get_patient_info", map[string]any{"patient_id": "P001"})
	assert.False(t, isErr)
	assert.Equal(t, "Patient P001: John Doe, Age: 45", text)

	text, isErr = env.callTool(t, "get_patient_info", map[string]any{"patient_id": "P999"})
	assert.True(t, isErr)
	assert.Equal(t, "Patient ID not found.", text)
}

func TestGetDepartmentHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "get_department_history", map[string]any{
		"patient_id": "P001", "department": "Cardiology",
	})
	assert.False(t, isErr)
	assert.Contains(t, text, "Department: Cardiology")
	assert.Contains(t, text, "Diagnosis: Hypertension")
	assert.Contains(t, text, "Current Medications: Lisinopril, Amlodipine")

	text, isErr = env.callTool(t, "get_department_history", map[string]any{
		"patient_id": "P002", "department": "cardiology",
	})
	assert.True(t, isErr)
	assert.Equal(t, "No records found for cardiology department.", text)
}

func TestGetAllDepartments(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "get_all_departments", map[string]any{"patient_id": "p001"})
	assert.False(t, isErr)
	assert.Equal(t, "Patient John Doe has records in: cardiology, orthopedics", text)
}

func TestSearchMedicalDocuments(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "search_medical_documents", map[string]any{
		"patient_id": "P002", "document_type": "XRAY",
	})
	assert.False(t, isErr)
	assert.Equal(t, "Found 1 XRAY document(s):\n- P002_XRAY_2025.png (Last modified: 2025-10-01T00:00:00Z)", text)

	require.Len(t, env.docs.listOpts, 1)
	assert.Equal(t, int64(DefaultSearchPageSize), env.docs.listOpts[0].PageSize)
	assert.Equal(t, []string{"P002", "XRAY"}, env.docs.queries[0].NameContains)
}

func TestSearchMedicalDocuments_LabFixture(t *testing.T) {
	env := newTestEnv(t, nil)
	env.docs.files = []gdrive.Object{{ID: "x", Name: "P001_LAB_2025.txt"}}

	text, isErr := env.callTool(t, "search_medical_documents", map[string]any{
		"patient_id": "P001", "document_type": "LAB",
	})
	assert.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, "Found 1 LAB document(s):"), text)
	assert.Contains(t, text, "P001_LAB_2025.txt")
}

func TestSearchMedicalDocuments_None(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "search_medical_documents", map[string]any{
		"patient_id": "P002", "document_type": "MRI",
	})
	assert.False(t, isErr)
	assert.Equal(t, "No MRI documents found for patient P002", text)
}

func TestSearchMedicalDocuments_AuthRequired(t *testing.T) {
	env := newTestEnv(t, fmt.Errorf("credential: no usable token: %w", gdrive.ErrAuth))

	text, isErr := env.callTool(t, "search_medical_documents", map[string]any{
		"patient_id": "P001", "document_type": "LAB",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "authorization required")
}

func TestGetLatestLabResults(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "get_latest_lab_results", map[string]any{"patient_id": "P001"})
	assert.False(t, isErr)
	assert.Equal(t, "Latest lab results from 2025-09-15T10:30:00Z:\nCholesterol: 180 mg/dL", text)

	require.Len(t, env.docs.queries, 1)
	assert.True(t, env.docs.queries[0].Latest)
	assert.Equal(t, []string{"P001", "LAB"}, env.docs.queries[0].NameContains)
}

func TestGetLatestLabResults_TestType(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "get_latest_lab_results", map[string]any{"patient_id": "P001", "test_type": "CBC"})
	assert.False(t, isErr)
	assert.Contains(t, text, "CBC: normal")
	assert.Equal(t, []string{"P001", "LAB", "CBC"}, env.docs.queries[0].NameContains)
}

func TestGetLatestLabResults_None(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "get_latest_lab_results", map[string]any{"patient_id": "P002"})
	assert.False(t, isErr)
	assert.Equal(t, "No lab results found.", text)
}

func TestGetLatestLabResults_FetchFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	delete(env.docs.content, "lab-new")

	text, isErr := env.callTool(t, "get_latest_lab_results", map[string]any{"patient_id": "P001"})
	assert.True(t, isErr)
	assert.Contains(t, text, "connection reset")
}

func TestListFolderFiles(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "list_folder_files", map[string]any{"folder": "Lab Reports", "all": true})
	assert.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, `Files in "Lab Reports" (3):`), text)

	text, isErr = env.callTool(t, "list_folder_files", map[string]any{"folder": "Nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, `no folder named "Nope"`)
}

func TestNotesTools(t *testing.T) {
	env := newTestEnv(t, nil)

	text, isErr := env.callTool(t, "read_notes", map[string]any{})
	assert.False(t, isErr)
	assert.Equal(t, "No notes yet.", text)

	text, isErr = env.callTool(t, "add_note", map[string]any{"message": "call P001 about results"})
	assert.False(t, isErr)
	assert.Equal(t, "Note saved!", text)

	_, isErr = env.callTool(t, "add_note", map[string]any{"message": "   "})
	assert.True(t, isErr)

	text, _ = env.callTool(t, "read_notes", map[string]any{})
	assert.Equal(t, "call P001 about results", text)
}

func TestLatestNoteResource(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "notes://latest"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "No notes yet.", res.Contents[0].Text)

	require.NoError(t, env.notes.Add("first"))
	require.NoError(t, env.notes.Add("second"))

	res, err = env.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "notes://latest"})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Contents[0].Text)
}

func TestGreetingResource(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "greeting://Dana"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "Hello, Dana! How can I assist you with patient information today?", res.Contents[0].Text)
}

func TestNoteSummaryPrompt(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: "note_summary_prompt"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "There are no notes yet.", text.Text)

	require.NoError(t, env.notes.Add("restock gloves"))

	res, err = env.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: "note_summary_prompt"})
	require.NoError(t, err)

	text, ok = res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "Summarize the current notes: restock gloves", text.Text)
}
