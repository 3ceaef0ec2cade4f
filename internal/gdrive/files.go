package gdrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/googleapi"
)

// DefaultObjectFields is the per-file projection used when ListOptions.Fields
// is empty.
const DefaultObjectFields = "id, name, mimeType, size, modifiedTime, webViewLink, md5Checksum, parents"

// ListOptions controls page size, projection, and pagination.
type ListOptions struct {
	// PageSize caps the objects returned per page (and in total when All is
	// false). Zero selects DefaultPageSize.
	PageSize int64
	// Fields is the per-file projection, e.g. "id, name, modifiedTime".
	Fields string
	// All follows continuation tokens until the listing is exhausted.
	All bool
}

func (o ListOptions) pageSize() int64 {
	switch {
	case o.PageSize <= 0:
		return DefaultPageSize
	case o.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return o.PageSize
	}
}

func (o ListOptions) fields() googleapi.Field {
	f := o.Fields
	if f == "" {
		f = DefaultObjectFields
	}

	return googleapi.Field(fmt.Sprintf("nextPageToken, files(%s)", f))
}

// projects reports whether the per-file projection includes field.
func (o ListOptions) projects(field string) bool {
	if o.Fields == "" {
		return true
	}

	for f := range strings.SplitSeq(o.Fields, ",") {
		if strings.TrimSpace(f) == field {
			return true
		}
	}

	return false
}

// ListFiles returns the non-trashed direct children of a container. Each
// call re-queries the service; results are ordered as Drive returns them.
func (c *Client) ListFiles(ctx context.Context, containerID string, opts ListOptions) ([]Object, error) {
	if containerID == "" {
		return nil, &Error{Op: "list files", Kind: ErrNotFound, Message: "container ID is required"}
	}

	return c.query(ctx, "list files", Query{ParentID: containerID}, opts)
}

// Search returns objects matching q. In Latest mode at most one object is
// returned: the most recently modified match.
func (c *Client) Search(ctx context.Context, q Query, opts ListOptions) ([]Object, error) {
	if q.Latest {
		opts.PageSize = 1
		opts.All = false
	}

	return c.query(ctx, "search", q, opts)
}

// query runs q, following continuation tokens when opts.All is set.
func (c *Client) query(ctx context.Context, op string, q Query, opts ListOptions) ([]Object, error) {
	qs := q.String()
	pageSize := opts.pageSize()

	c.logger.Info("querying drive",
		slog.String("op", op),
		slog.String("q", qs),
		slog.Int64("page_size", pageSize),
		slog.Bool("all", opts.All),
	)

	call := c.svc.Files.List().
		Q(qs).
		PageSize(pageSize).
		Fields(opts.fields()).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)

	if ob := q.orderBy(); ob != "" {
		call = call.OrderBy(ob)
	}

	sizeProjected := opts.projects("size")

	var (
		objects   []Object
		pageToken string
		page      = 1
	)

	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, classify(op, err, ErrFetch)
		}

		for _, f := range resp.Files {
			objects = append(objects, toObject(f, sizeProjected, c.logger))
		}

		c.logger.Debug("fetched page",
			slog.String("op", op),
			slog.Int("page", page),
			slog.Int("count", len(resp.Files)),
		)

		if !opts.All || resp.NextPageToken == "" {
			break
		}

		if resp.NextPageToken == pageToken {
			return nil, &Error{Op: op, Kind: ErrFetch, Message: "service repeated a continuation token"}
		}

		pageToken = resp.NextPageToken
		page++
	}

	if !opts.All && int64(len(objects)) > pageSize {
		objects = objects[:pageSize]
	}

	c.logger.Info("query complete",
		slog.String("op", op),
		slog.Int("total", len(objects)),
	)

	return objects, nil
}

// ResolveFolder returns the unique non-trashed folder named name. Zero
// matches yield ErrNotFound; more than one yields ErrAmbiguous with every
// candidate attached, never an arbitrary pick.
func (c *Client) ResolveFolder(ctx context.Context, name string) (Container, error) {
	const op = "resolve folder"

	if name == "" {
		return Container{}, &Error{Op: op, Kind: ErrNotFound, Message: "folder name is required"}
	}

	objects, err := c.query(ctx, op, Query{Name: name, MIMEType: FolderMIMEType}, ListOptions{
		Fields: "id, name",
		All:    true,
	})
	if err != nil {
		return Container{}, err
	}

	switch len(objects) {
	case 0:
		return Container{}, &Error{
			Op:      op,
			Kind:    ErrNotFound,
			Message: fmt.Sprintf("no folder named %q", name),
		}
	case 1:
		c.logger.Debug("resolved folder",
			slog.String("name", name),
			slog.String("id", objects[0].ID),
		)

		return Container{ID: objects[0].ID, Name: objects[0].Name}, nil
	default:
		candidates := make([]Container, 0, len(objects))
		for _, o := range objects {
			candidates = append(candidates, Container{ID: o.ID, Name: o.Name})
		}

		c.logger.Warn("folder name is ambiguous",
			slog.String("name", name),
			slog.Int("matches", len(candidates)),
		)

		return Container{}, &Error{
			Op:         op,
			Kind:       ErrAmbiguous,
			Message:    fmt.Sprintf("%d folders named %q", len(candidates), name),
			Candidates: candidates,
		}
	}
}

// ListFolder resolves a folder by name and lists its contents.
func (c *Client) ListFolder(ctx context.Context, name string, opts ListOptions) (Container, []Object, error) {
	folder, err := c.ResolveFolder(ctx, name)
	if err != nil {
		return Container{}, nil, err
	}

	objects, err := c.ListFiles(ctx, folder.ID, opts)
	if err != nil {
		return folder, nil, err
	}

	return folder, objects, nil
}

// IsKind reports whether err is an *Error of the given kind. Convenience for
// callers that switch on several kinds.
func IsKind(err, kind error) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}

	return de.Kind == kind
}
