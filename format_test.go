package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/report"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"NAME", "SIZE", "ID"}, [][]string{
		{"P001_LAB_CBC.txt", "1.2 KiB", "f1"},
		{"x.pdf", "-", "f2"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "NAME              SIZE     ID", lines[0])
	assert.Equal(t, "P001_LAB_CBC.txt  1.2 KiB  f1", lines[1])
	assert.Equal(t, "x.pdf             -        f2", lines[2])
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestReportedError(t *testing.T) {
	cause := &gdrive.Error{Op: "resolve folder", Kind: gdrive.ErrNotFound, Message: `no folder named "X"`}

	err := fmt.Errorf("wrapped: %w", reportedError{cause})
	assert.ErrorIs(t, err, gdrive.ErrNotFound)
	assert.Contains(t, err.Error(), report.Failure(cause))

	plain := reportedError{errors.New("boom")}
	assert.Equal(t, "boom", plain.Error())
}

func TestObjectRows(t *testing.T) {
	rows := objectRows([]gdrive.Object{
		{ID: "f1", Name: "a.txt", MIMEType: "text/plain", Size: 2048, HasSize: true},
		{ID: "d1", Name: "sub", MIMEType: gdrive.FolderMIMEType},
	})

	assert.Equal(t, []string{"a.txt", "2.0 KiB", "unknown", "f1"}, rows[0])
	assert.Equal(t, "folder", rows[1][1])
}

func TestToFileJSON_OmitsUnknownSize(t *testing.T) {
	out := toFileJSON([]gdrive.Object{
		{ID: "doc", Name: "Summary", MIMEType: "application/vnd.google-apps.document"},
		{ID: "f", Name: "empty.txt", MIMEType: "text/plain", Size: 0, HasSize: true},
	})

	assert.Nil(t, out[0].Size)
	require.NotNil(t, out[1].Size)
	assert.Equal(t, int64(0), *out[1].Size)
}
