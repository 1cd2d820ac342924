package netatmo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"smarther2mqtt/internal/idgen"

	"golang.org/x/oauth2"
)

const maxTokenResponseSize = 1 << 20

// DefaultScopes are the scopes needed to read and drive Smarther thermostats
var DefaultScopes = []string{"read_smarther", "write_smarther"}

// FlowState is the state of the interactive authorization flow
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowAwaitingUserGrant
	FlowExchangingCode
	FlowDone
	FlowFailed
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowAwaitingUserGrant:
		return "awaiting_user_grant"
	case FlowExchangingCode:
		return "exchanging_code"
	case FlowDone:
		return "done"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Notifier presents a message to the human operator
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// AuthObserver receives token refresh outcomes, e.g. for metrics
type AuthObserver interface {
	ObserveRefresh(err error)
}

// OAuthConfig contains what the authorization and refresh grants need
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	ListenHost   string // callback listener address, also used in the redirect URI
	ListenPort   int
	HTTPTimeout  time.Duration
}

// Authenticator runs the authorization-code flow and refreshes tokens
type Authenticator struct {
	config     OAuthConfig
	oauth      *oauth2.Config
	store      TokenStore
	notifier   Notifier
	httpClient *http.Client
	observer   AuthObserver
	logger     *slog.Logger

	mu    sync.Mutex
	state FlowState
}

// AuthOption customises an Authenticator
type AuthOption func(*Authenticator)

// WithAuthObserver registers an observer for refresh outcomes
func WithAuthObserver(observer AuthObserver) AuthOption {
	return func(a *Authenticator) {
		a.observer = observer
	}
}

// WithAuthHTTPClient replaces the HTTP client used against the token endpoint
func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *Authenticator) {
		a.httpClient = client
	}
}

// NewAuthenticator creates an authenticator that stores tokens in store and
// announces the authorization URL through notifier
func NewAuthenticator(config OAuthConfig, store TokenStore, notifier Notifier, logger *slog.Logger, opts ...AuthOption) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 30 * time.Second
	}

	a := &Authenticator{
		config:   config,
		store:    store,
		notifier: notifier,
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		logger: logger.With("component", "authenticator"),
	}

	a.oauth = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  a.RedirectURL(),
		Scopes:       config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   config.AuthURL,
			TokenURL:  config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// State returns the current state of the authorization flow
func (a *Authenticator) State() FlowState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Authenticator) setState(state FlowState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.logger.Debug("Authorization flow state changed", "state", state.String())
}

func (a *Authenticator) listenAddr() string {
	return net.JoinHostPort(a.config.ListenHost, strconv.Itoa(a.config.ListenPort))
}

// RedirectURL is where the provider sends the browser back with the code
func (a *Authenticator) RedirectURL() string {
	return fmt.Sprintf("http://%s/token", a.listenAddr())
}

// ConvenienceURL is the short local URL announced to the operator
func (a *Authenticator) ConvenienceURL() string {
	return fmt.Sprintf("http://%s/authorize", a.listenAddr())
}

// AuthorizeURL is the provider authorization page
func (a *Authenticator) AuthorizeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// Authorize runs the interactive authorization-code flow. It blocks until
// the operator completes the grant in a browser or ctx is cancelled, in
// which case ErrAuthorizationAborted is returned.
func (a *Authenticator) Authorize(ctx context.Context) error {
	authorizeURL := a.AuthorizeURL(idgen.New())

	a.logger.Debug("Expecting Netatmo authorization code via HTTP", "address", a.listenAddr())
	listener, err := startCallbackListener(a.listenAddr(), authorizeURL, a.logger)
	if err != nil {
		a.setState(FlowFailed)
		return fmt.Errorf("failed to start callback listener on %s: %w", a.listenAddr(), err)
	}
	a.setState(FlowAwaitingUserGrant)

	message := fmt.Sprintf("The Netatmo Smarther2 bridge requires authorization. Please grant it by accessing this web page: %s", a.ConvenienceURL())
	if err := a.notifier.Publish(ctx, message); err != nil {
		a.logger.Warn("Failed to deliver authorization request on every channel", "error", err)
	}

	var code string
	select {
	case code = <-listener.codes:
	case <-ctx.Done():
		listener.Shutdown()
		a.setState(FlowIdle)
		return ErrAuthorizationAborted
	}
	listener.Shutdown()

	a.logger.Debug("Received authorization code")
	a.setState(FlowExchangingCode)

	client, response := a.tokenClient()
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, client)
	result, err := a.oauth.Exchange(exchangeCtx, code,
		oauth2.SetAuthURLParam("scope", strings.Join(a.config.Scopes, " ")),
	)
	if err != nil {
		a.setState(FlowFailed)
		tokenErr := classifyTokenError(err)
		a.logger.Error("Failed to obtain a token", "url", a.config.TokenURL, "kind", tokenErr.Kind.String(), "error", tokenErr)
		return tokenErr
	}

	if err := a.storeToken(response.body, result); err != nil {
		a.setState(FlowFailed)
		return err
	}

	a.setState(FlowDone)
	a.logger.Info("New token successfully obtained")
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair
func (a *Authenticator) Refresh(ctx context.Context) (err error) {
	defer func() {
		if a.observer != nil {
			a.observer.ObserveRefresh(err)
		}
	}()

	current := a.store.Current()
	if current == nil || current.RefreshToken == "" {
		return ErrNoToken
	}

	a.logger.Debug("Refreshing token", "url", a.config.TokenURL)

	client, response := a.tokenClient()
	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, client)
	source := a.oauth.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: current.RefreshToken})
	result, err := source.Token()
	if err != nil {
		tokenErr := classifyTokenError(err)
		a.logger.Error("Failed to refresh token", "url", a.config.TokenURL, "kind", tokenErr.Kind.String(), "error", tokenErr)
		return tokenErr
	}

	if err := a.storeToken(response.body, result); err != nil {
		return err
	}

	a.logger.Info("Token successfully refreshed")
	return nil
}

// storeToken validates and persists a freshly issued token. A failed write
// is logged by the store and does not invalidate the token for this run.
func (a *Authenticator) storeToken(body []byte, result *oauth2.Token) error {
	token, err := tokenFromResponse(body, result)
	if err != nil {
		a.logger.Error("Token is invalid", "url", a.config.TokenURL, "error", err)
		return err
	}
	if err := a.store.Save(token); err != nil {
		a.logger.Warn("Token obtained but not persisted", "error", err)
	}
	return nil
}

// tokenCapture records the body of the token endpoint answer
type tokenCapture struct {
	base http.RoundTripper
	body []byte
}

func (c *tokenCapture) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, err
	}
	c.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// tokenClient returns a per-call client whose token response can be read
// back after x/oauth2 has parsed it
func (a *Authenticator) tokenClient() (*http.Client, *tokenCapture) {
	base := a.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	capture := &tokenCapture{base: base}

	client := *a.httpClient
	client.Transport = capture
	return &client, capture
}

// classifyTokenError maps an x/oauth2 failure onto a TokenError
func classifyTokenError(err error) *TokenError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &TokenError{
			Kind:       TokenHTTPStatus,
			StatusCode: status,
			Body:       string(retrieveErr.Body),
			Err:        err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &TokenError{Kind: TokenTransport, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}

	// x/oauth2 reports undecodable bodies and a missing access_token as plain errors
	return &TokenError{Kind: TokenInvalid, Err: err}
}
