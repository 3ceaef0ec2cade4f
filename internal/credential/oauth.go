package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// DriveReadOnlyScope is the only scope healthdrive requests by default.
const DriveReadOnlyScope = drive.DriveReadonlyScope

// LoadClientConfig reads a Google "installed app" client secrets file
// (credentials.json) and returns the OAuth configuration for scopes. A
// missing or malformed file is an ErrAuth.
func LoadClientConfig(path string, scopes []string) (*oauth2.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("credential: no client secrets file configured: %w", ErrAuth)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("credential: client secrets file %s not found: %w", path, ErrAuth)
	}

	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w: %w", path, ErrAuth, err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("credential: parsing %s: %w: %w", path, ErrAuth, err)
	}

	return cfg, nil
}

// OAuthRefresher refreshes tokens against the configured token endpoint.
type OAuthRefresher struct {
	Config *oauth2.Config
}

// Refresh performs one refresh-token grant. The returned token is always
// new; an unexpired input is still exchanged.
func (r OAuthRefresher) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, errors.New("credential: no refresh token")
	}

	// Dropping the access token forces the token source to hit the endpoint.
	src := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})

	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("credential: refreshing token: %w", err)
	}

	return fresh, nil
}
