package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

const (
	stateTokenBytes = 16
	callbackPath    = "/"
	shutdownTimeout = 5 * time.Second
)

// BrowserAuthorizer runs the installed-app authorization-code flow with
// PKCE: it listens on a loopback port, sends the user's browser to Google,
// and exchanges the returned code.
type BrowserAuthorizer struct {
	Config *oauth2.Config
	// OpenURL launches a browser. When it fails the URL is printed to Out.
	OpenURL func(string) error
	Out     io.Writer
	Logger  *slog.Logger
}

type callbackResult struct {
	code string
	err  error
}

// Authorize blocks until the browser delivers a code, ctx is canceled, or
// the user denies access.
func (b *BrowserAuthorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Copy so concurrent use never races on RedirectURL.
	cfg := *b.Config

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("credential: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	b.launchBrowser(authURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("credential: token exchange failed: %w", err)
	}

	return tok, nil
}

func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("credential: binding loopback listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("credential: listener address is not TCP")
	}

	logger.Debug("callback server listening", slog.Int("port", tcpAddr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("credential: callback server: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, tcpAddr.Port, nil
}

func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		result := parseCallback(r, state)
		if result.err != nil {
			http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body><h1>healthdrive is authorized</h1>"+
				"<p>You can close this window and return to the terminal.</p></body></html>")
		}

		// Only the first callback counts; later hits (favicon, reloads) are dropped.
		select {
		case resultCh <- result:
		default:
		}
	})
}

func parseCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()

	if q.Get("state") != state {
		return callbackResult{err: errors.New("credential: OAuth state mismatch")}
	}

	if errParam := q.Get("error"); errParam != "" {
		return callbackResult{err: fmt.Errorf("credential: authorization denied: %s", errParam)}
	}

	code := q.Get("code")
	if code == "" {
		return callbackResult{err: errors.New("credential: callback missing authorization code")}
	}

	return callbackResult{code: code}
}

func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

func (b *BrowserAuthorizer) launchBrowser(authURL string, logger *slog.Logger) {
	out := b.Out
	if out == nil {
		out = os.Stderr
	}

	if b.OpenURL == nil {
		fmt.Fprintf(out, "Open this URL in your browser:\n%s\n", authURL)
		return
	}

	if err := b.OpenURL(authURL); err != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", err.Error()))
		fmt.Fprintf(out, "Open this URL in your browser:\n%s\n", authURL)
	}
}

func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		return result.code, result.err
	case <-ctx.Done():
		return "", fmt.Errorf("credential: browser authorization canceled: %w", ctx.Err())
	}
}

func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
