package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/exchange"
	"github.com/goliatone/flaresync/social"
	"github.com/goliatone/go-errors"
)

// Backend is the trusted side of a connection. It holds the provider client
// secrets and the encryption keys. *exchange.Service satisfies it in process;
// HTTPBackend reaches it over the network.
type Backend interface {
	Connect(ctx context.Context, bearer string, req exchange.ConnectRequest) (*flaresync.SocialProfile, error)
	Disconnect(ctx context.Context, bearer, platform string) (*flaresync.SocialProfile, error)
	Sync(ctx context.Context, bearer, platform string) (*flaresync.SocialProfile, error)
	Profile(ctx context.Context, bearer, platform string) (*flaresync.SocialProfile, error)
	Profiles(ctx context.Context, bearer string) ([]*flaresync.SocialProfile, error)
}

var _ Backend = (*exchange.Service)(nil)
var _ Backend = (*HTTPBackend)(nil)

const maxBackendResponse = 1 << 20

// knownErrors maps backend text codes back to their sentinels so callers
// can match on them across the wire.
var knownErrors = map[string]*errors.Error{}

func init() {
	for _, e := range []*errors.Error{
		flaresync.ErrMissingConfiguration,
		flaresync.ErrNotAuthenticated,
		flaresync.ErrInvalidSession,
		flaresync.ErrSessionExpired,
		flaresync.ErrUnsupportedPlatform,
		flaresync.ErrProfileNotFound,
		flaresync.ErrNotConnected,
		flaresync.ErrOperationInProgress,
		flaresync.ErrEncryptionUnavailable,
		social.ErrCodeVerifierNotFound,
		social.ErrTokenExchangeFailed,
		social.ErrProfileFetchFailed,
	} {
		knownErrors[e.TextCode] = e
	}
}

// HTTPBackend calls the backend function routes.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend rooted at baseURL.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Connect implements Backend.
func (b *HTTPBackend) Connect(ctx context.Context, bearer string, req exchange.ConnectRequest) (*flaresync.SocialProfile, error) {
	out := &flaresync.SocialProfile{}
	if err := b.do(ctx, http.MethodPost, "/connect-social-platform", bearer, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Disconnect implements Backend.
func (b *HTTPBackend) Disconnect(ctx context.Context, bearer, platform string) (*flaresync.SocialProfile, error) {
	out := &flaresync.SocialProfile{}
	if err := b.do(ctx, http.MethodPost, "/disconnect-social-platform", bearer, exchange.PlatformRequest{Platform: platform}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sync implements Backend.
func (b *HTTPBackend) Sync(ctx context.Context, bearer, platform string) (*flaresync.SocialProfile, error) {
	out := &flaresync.SocialProfile{}
	if err := b.do(ctx, http.MethodPost, "/sync-social-platform", bearer, exchange.PlatformRequest{Platform: platform}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Profile implements Backend.
func (b *HTTPBackend) Profile(ctx context.Context, bearer, platform string) (*flaresync.SocialProfile, error) {
	out := &flaresync.SocialProfile{}
	if err := b.do(ctx, http.MethodGet, "/social-profiles/"+url.PathEscape(platform), bearer, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Profiles implements Backend.
func (b *HTTPBackend) Profiles(ctx context.Context, bearer string) ([]*flaresync.SocialProfile, error) {
	var out struct {
		Profiles []*flaresync.SocialProfile `json:"profiles"`
	}
	if err := b.do(ctx, http.MethodGet, "/social-profiles", bearer, nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode backend request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build backend request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return ErrBackendFailure.Clone().WithMetadata(map[string]any{
			"path":  path,
			"error": err.Error(),
		})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponse))
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to read backend response")
	}

	if resp.StatusCode != http.StatusOK {
		return backendError(resp.StatusCode, path, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode backend response")
	}
	return nil
}

func backendError(status int, path string, data []byte) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.Unmarshal(data, &payload)

	if known, ok := knownErrors[payload.Code]; ok {
		err := known.Clone().WithMetadata(map[string]any{
			"status": status,
			"path":   path,
		})
		if payload.Error != "" {
			err.Message = payload.Error
		}
		return err
	}

	message := payload.Error
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", status)
	}
	return errors.New(message, ErrBackendFailure.Category).
		WithTextCode(TextCodeBackendFailure).
		WithMetadata(map[string]any{
			"status": status,
			"path":   path,
			"code":   payload.Code,
		})
}
