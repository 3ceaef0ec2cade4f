package gdrive

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // Drive publishes MD5 checksums; used for integrity, not security
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
)

// ChunkSource yields an object's content as consecutive chunks. done is
// true on the call that returns the final chunk (which may be empty).
type ChunkSource interface {
	NextChunk(ctx context.Context) (data []byte, done bool, err error)
}

// ReadAllChunks drains src into one buffer. The transfer is complete only
// when src reports done; any error discards everything read so far.
func ReadAllChunks(ctx context.Context, src ChunkSource) ([]byte, error) {
	var buf bytes.Buffer

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, done, err := src.NextChunk(ctx)
		if err != nil {
			return nil, err
		}

		buf.Write(data)

		if done {
			return buf.Bytes(), nil
		}
	}
}

// FetchContent downloads the full content of an object into memory using
// ranged requests of the client's chunk size. Either the whole object is
// returned or an *Error of kind ErrFetch (or ErrAuth/ErrNotFound); there is
// no retry and no partial result.
func (c *Client) FetchContent(ctx context.Context, objectID string) ([]byte, error) {
	const op = "fetch content"

	if objectID == "" {
		return nil, &Error{Op: op, Kind: ErrNotFound, Message: "object ID is required"}
	}

	c.logger.Info("fetching content",
		slog.String("file_id", objectID),
		slog.Int64("chunk_size", c.chunkSize),
	)

	meta, err := c.svc.Files.Get(objectID).
		SupportsAllDrives(true).
		Fields("id, name, mimeType, size, md5Checksum").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(op, err, ErrFetch)
	}

	obj := toObject(meta, true, c.logger)
	if obj.IsFolder() || obj.IsNative() {
		return nil, &Error{
			Op:      op,
			Kind:    ErrFetch,
			Message: fmt.Sprintf("%q (%s) has no downloadable content", obj.Name, obj.MIMEType),
		}
	}

	src := &rangeSource{client: c, fileID: objectID, chunkSize: c.chunkSize, total: -1}

	data, err := ReadAllChunks(ctx, src)
	if err != nil {
		c.logger.Error("fetch failed",
			slog.String("file_id", objectID),
			slog.Int64("bytes_before_error", src.offset),
			slog.String("error", err.Error()),
		)

		return nil, classify(op, err, ErrFetch)
	}

	if obj.MD5Checksum != "" {
		sum := md5.Sum(data) //nolint:gosec // integrity check against Drive's published checksum
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, obj.MD5Checksum) {
			return nil, &Error{
				Op:      op,
				Kind:    ErrFetch,
				Message: fmt.Sprintf("checksum mismatch: got %s, want %s", got, obj.MD5Checksum),
			}
		}
	}

	c.logger.Debug("fetch complete",
		slog.String("file_id", objectID),
		slog.Int("bytes", len(data)),
		slog.Int("chunks", src.chunks),
	)

	return data, nil
}

// rangeSource reads a Drive object with successive HTTP Range requests.
type rangeSource struct {
	client    *Client
	fileID    string
	chunkSize int64
	offset    int64
	total     int64 // -1 until the first Content-Range is seen
	chunks    int
}

func (r *rangeSource) NextChunk(ctx context.Context) ([]byte, bool, error) {
	call := r.client.svc.Files.Get(r.fileID).SupportsAllDrives(true).Context(ctx)
	call.Header().Set("Range", fmt.Sprintf("bytes=%d-%d", r.offset, r.offset+r.chunkSize-1))

	resp, err := call.Download()
	if err != nil {
		// An empty object cannot satisfy any range.
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusRequestedRangeNotSatisfiable && r.offset == 0 {
			return nil, true, nil
		}

		return nil, false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading chunk at offset %d: %w", r.offset, err)
	}

	r.chunks++

	// 200 means the server ignored Range and sent everything.
	if resp.StatusCode == http.StatusOK {
		r.offset += int64(len(data))
		return data, true, nil
	}

	if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
		r.total = total
	}

	r.offset += int64(len(data))

	var done bool
	if r.total >= 0 {
		done = r.offset >= r.total
	} else {
		done = int64(len(data)) < r.chunkSize
	}

	// An empty chunk that does not finish the object would be requested again forever.
	if len(data) == 0 && !done {
		return nil, false, fmt.Errorf("empty chunk at offset %d of %d", r.offset, r.total)
	}

	return data, done, nil
}

// parseContentRangeTotal extracts the complete length from a header like
// "bytes 0-9/25". Returns false for "*" or malformed values.
func parseContentRangeTotal(h string) (int64, bool) {
	_, after, found := strings.Cut(h, "/")
	if !found || after == "*" {
		return 0, false
	}

	total, err := strconv.ParseInt(strings.TrimSpace(after), 10, 64)
	if err != nil || total < 0 {
		return 0, false
	}

	return total, true
}
