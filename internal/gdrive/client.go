package gdrive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Defaults for listing and downloading.
const (
	DefaultPageSize  = 100
	MaxPageSize      = 1000 // Drive rejects larger pageSize values
	DefaultChunkSize = 10 * 1024 * 1024
	userAgent        = "healthdrive/0.1"
)

// Client issues Drive v3 requests on behalf of one authenticated account.
// It is safe for concurrent use; it holds no per-call state.
type Client struct {
	svc       *drive.Service
	chunkSize int64
	logger    *slog.Logger
}

// Options tune a Client. The zero value selects production defaults.
type Options struct {
	// Endpoint overrides the Drive API base URL (tests point it at httptest).
	Endpoint string
	// ChunkSize is the byte length of each ranged download request.
	ChunkSize int64
	// UserAgent overrides the default User-Agent.
	UserAgent string
}

// NewClient creates a Drive client. httpClient must attach credentials to
// each request, typically oauth2.NewClient over a credential.Provider.
func NewClient(ctx context.Context, httpClient *http.Client, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = userAgent
	}

	clientOpts := []option.ClientOption{
		option.WithHTTPClient(httpClient),
		option.WithUserAgent(ua),
	}

	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: creating Drive service: %w", err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Client{
		svc:       svc,
		chunkSize: chunkSize,
		logger:    logger,
	}, nil
}
