package gdrive

import (
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
)

// FolderMIMEType identifies Drive folders.
const FolderMIMEType = "application/vnd.google-apps.folder"

// nativeMIMEPrefix marks Google-native documents (Docs, Sheets, ...). Drive
// reports no size for them and they cannot be downloaded without export.
const nativeMIMEPrefix = "application/vnd.google-apps."

// Container is a folder in the remote store.
type Container struct {
	ID   string
	Name string
}

// Object is a snapshot of one remote file taken at query time.
type Object struct {
	ID          string
	Name        string
	MIMEType    string
	Size        int64
	HasSize     bool // false for Google-native documents and when size was not requested
	ModifiedAt  time.Time
	WebViewLink string
	MD5Checksum string // hex, empty for native documents
	Parents     []string
}

// IsFolder reports whether the object is a folder.
func (o Object) IsFolder() bool {
	return o.MIMEType == FolderMIMEType
}

// IsNative reports whether the object is a Google-native document.
func (o Object) IsNative() bool {
	return strings.HasPrefix(o.MIMEType, nativeMIMEPrefix) && !o.IsFolder()
}

// toObject normalizes a Drive API file into an Object. sizeProjected says
// whether the request asked for size; the decoded File cannot tell an
// omitted size from zero.
func toObject(f *drive.File, sizeProjected bool, logger *slog.Logger) Object {
	obj := Object{
		ID:          f.Id,
		Name:        f.Name,
		MIMEType:    f.MimeType,
		Size:        f.Size,
		HasSize:     sizeProjected && f.MimeType != "" && !strings.HasPrefix(f.MimeType, nativeMIMEPrefix),
		WebViewLink: f.WebViewLink,
		MD5Checksum: f.Md5Checksum,
		Parents:     f.Parents,
	}

	obj.ModifiedAt = parseTimestamp(f.ModifiedTime, f.Id, logger)

	return obj
}

// parseTimestamp parses Drive's RFC 3339 modifiedTime. Missing or invalid
// values yield the zero time so repeated listings stay comparable.
func parseTimestamp(raw, fileID string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid modifiedTime",
			slog.String("file_id", fileID),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t.UTC()
}
