package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/logging"
)

var (
	// ErrNoToken is returned when no cached token exists.
	ErrNoToken = errors.New("no cached OAuth token")

	// ErrStateMismatch is returned when the OAuth callback carries a state
	// value other than the one sent with the consent URL.
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// AuthConfig configures Authenticate.
type AuthConfig struct {
	// ClientSecretPath is the client secret JSON from the Cloud Console.
	ClientSecretPath string

	// TokenPath is where the token is cached (default: DefaultTokenPath()).
	TokenPath string

	// Scopes requested during consent (default: DefaultScopes).
	Scopes []string

	// OpenBrowser is called with the consent URL. Optional.
	OpenBrowser func(url string) error

	// Prompt receives the consent URL and instructions (default: os.Stderr).
	Prompt io.Writer

	// NonInteractive fails with ErrNoToken instead of starting the browser flow.
	NonInteractive bool

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// DefaultTokenPath returns ~/.credentials/drive_token.json.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".credentials", "drive_token.json")
}

// LoadOAuthConfig reads a client secret file. Both "installed" and "web"
// client types are accepted.
func LoadOAuthConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}
	return conf, nil
}

// LoadToken reads a cached token. A missing file yields ErrNoToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoToken, path)
		}
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok as JSON. The directory is created with mode 0700
// and the file with 0600.
func SaveToken(path string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token is nil")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// HasToken checks if a usable token is cached at path.
func HasToken(path string) bool {
	return NewFileTokenProvider(path).HasToken()
}

// tokenUsable reports whether tok can authorize requests, either directly
// or after a refresh.
func tokenUsable(tok *oauth2.Token) bool {
	if tok == nil {
		return false
	}
	return tok.Valid() || tok.RefreshToken != ""
}

// Authenticate returns an HTTP client authorized for the Drive API.
//
// A cached token is used when it is valid or can be refreshed. Otherwise the
// user authorizes through a loopback redirect on 127.0.0.1 and the new token
// is cached. Tokens refreshed later by the client are written back to the
// cache.
func Authenticate(ctx context.Context, cfg AuthConfig) (*http.Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithOperation(logger, "authenticate")

	if cfg.TokenPath == "" {
		cfg.TokenPath = DefaultTokenPath()
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	conf, err := LoadOAuthConfig(cfg.ClientSecretPath, scopes)
	if err != nil {
		return nil, err
	}

	tok, err := LoadToken(cfg.TokenPath)
	if err != nil && !errors.Is(err, ErrNoToken) {
		logger.Warn("ignoring unreadable token cache", logging.Path(cfg.TokenPath), logging.Err(err))
	}

	if !tokenUsable(tok) {
		if cfg.NonInteractive {
			return nil, fmt.Errorf("%w: run the auth command first", ErrNoToken)
		}

		tok, err = runLoopbackFlow(ctx, conf, cfg, logger)
		if err != nil {
			cfg.Metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
			return nil, err
		}
		cfg.Metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

		logger.Info("storing credentials", logging.Path(cfg.TokenPath))
		if err := SaveToken(cfg.TokenPath, tok); err != nil {
			return nil, err
		}
	}

	ts := &persistingTokenSource{
		base:    oauth2.ReuseTokenSource(tok, conf.TokenSource(ctx, tok)),
		path:    cfg.TokenPath,
		last:    tok.AccessToken,
		logger:  logger,
		metrics: cfg.Metrics,
	}

	// Refresh now so an unusable refresh token fails here rather than on
	// the first Drive call.
	if _, err := ts.Token(); err != nil {
		return nil, err
	}

	return oauth2.NewClient(ctx, ts), nil
}

type callbackResult struct {
	code string
	err  error
}

// runLoopbackFlow performs the installed-app authorization code flow with
// PKCE, receiving the code on an ephemeral local port.
func runLoopbackFlow(ctx context.Context, base *oauth2.Config, cfg AuthConfig, logger *slog.Logger) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	conf := *base
	conf.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server failed", logging.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	prompt := cfg.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	fmt.Fprintf(prompt, "Open the following URL in your browser to authorize access to Google Drive:\n\n%s\n\n", authURL)

	if cfg.OpenBrowser != nil {
		if err := cfg.OpenBrowser(authURL); err != nil {
			logger.Debug("could not open browser", logging.Err(err))
		}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

// callbackHandler receives the OAuth redirect. Requests carrying neither a
// code nor an error (prefetches, probes) are answered and dropped. Only the
// first real result is delivered; later requests get the same page but are
// otherwise ignored.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		q := r.URL.Query()
		if q.Get("code") == "" && q.Get("error") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Waiting for the authorization response.")
			return
		}

		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Authorization failed: %v\n", res.err)
		} else {
			fmt.Fprintln(w, "Authorization complete. You may close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})
}

// persistingTokenSource writes every newly issued token back to the cache.
type persistingTokenSource struct {
	base    oauth2.TokenSource
	path    string
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(context.Background(), instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken
	s.metrics.RecordOAuthTokenRefresh(context.Background(), instrumentation.OAuthResultSuccess)
	s.logger.Debug("token refreshed",
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)),
		slog.Time("expiry", tok.Expiry))

	if err := SaveToken(s.path, tok); err != nil {
		s.logger.Warn("failed to persist refreshed token", logging.Path(s.path), logging.Err(err))
	}
	return tok, nil
}
