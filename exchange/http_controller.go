package exchange

import (
	"strings"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// CORS constants for the backend function routes.
const (
	AllowOrigin  = "*"
	AllowHeaders = "authorization, x-client-info, apikey, content-type"
	AllowMethods = "GET, POST, OPTIONS"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController exposes Service over HTTP. Every failure is answered with
// 400 and a JSON {"error": message, "code": text_code} body; code is omitted
// for errors without a text code.
type HTTPController struct {
	service *Service
	logger  flaresync.Logger
}

// NewHTTPController creates a controller over service.
func NewHTTPController(service *Service, logger flaresync.Logger) *HTTPController {
	return &HTTPController{
		service: service,
		logger:  flaresync.NormalizeLogger(logger),
	}
}

// RegisterRoutes registers the backend function routes.
func (c *HTTPController) RegisterRoutes(r RouteRegistrar) {
	r.Post("/connect-social-platform", c.Connect)
	r.Post("/disconnect-social-platform", c.Disconnect)
	r.Post("/sync-social-platform", c.Sync)
	r.Get("/social-profiles", c.ListProfiles)
	r.Get("/social-profiles/:platform", c.GetProfile)
}

// CORS sets permissive CORS headers and answers preflight requests.
func CORS() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			ctx.SetHeader("Access-Control-Allow-Origin", AllowOrigin)
			ctx.SetHeader("Access-Control-Allow-Headers", AllowHeaders)
			ctx.SetHeader("Access-Control-Allow-Methods", AllowMethods)

			if strings.EqualFold(ctx.Method(), "OPTIONS") {
				return ctx.Status(router.StatusOK).SendString("ok")
			}
			return ctx.Next()
		}
	}
}

// Connect handles POST /connect-social-platform.
func (c *HTTPController) Connect(ctx router.Context) error {
	bearer, err := flaresync.BearerToken(ctx.GetString("Authorization", ""))
	if err != nil {
		return c.fail(ctx, err)
	}

	payload := new(ConnectRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.fail(ctx, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	profile, err := c.service.Connect(ctx.Context(), bearer, *payload)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, profile)
}

// Disconnect handles POST /disconnect-social-platform.
func (c *HTTPController) Disconnect(ctx router.Context) error {
	bearer, payload, err := c.platformRequest(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	profile, err := c.service.Disconnect(ctx.Context(), bearer, payload.Platform)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, profile)
}

// Sync handles POST /sync-social-platform.
func (c *HTTPController) Sync(ctx router.Context) error {
	bearer, payload, err := c.platformRequest(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	profile, err := c.service.Sync(ctx.Context(), bearer, payload.Platform)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, profile)
}

// ListProfiles handles GET /social-profiles.
func (c *HTTPController) ListProfiles(ctx router.Context) error {
	bearer, err := flaresync.BearerToken(ctx.GetString("Authorization", ""))
	if err != nil {
		return c.fail(ctx, err)
	}

	profiles, err := c.service.Profiles(ctx.Context(), bearer)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, map[string]any{
		"profiles": profiles,
	})
}

// GetProfile handles GET /social-profiles/:platform.
func (c *HTTPController) GetProfile(ctx router.Context) error {
	bearer, err := flaresync.BearerToken(ctx.GetString("Authorization", ""))
	if err != nil {
		return c.fail(ctx, err)
	}

	profile, err := c.service.Profile(ctx.Context(), bearer, ctx.Param("platform"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, profile)
}

func (c *HTTPController) platformRequest(ctx router.Context) (string, *PlatformRequest, error) {
	bearer, err := flaresync.BearerToken(ctx.GetString("Authorization", ""))
	if err != nil {
		return "", nil, err
	}

	payload := new(PlatformRequest)
	if err := ctx.Bind(payload); err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryBadInput, "invalid request body")
	}
	return bearer, payload, nil
}

func (c *HTTPController) fail(ctx router.Context, err error) error {
	c.logger.Debug("backend function request failed", "error", err)

	body := map[string]string{"error": ErrorMessage(err)}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil && richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}
	return ctx.JSON(router.StatusBadRequest, body)
}

// ErrorMessage renders err for a client: the error message plus the
// provider description when one is attached. Stack traces and sources are
// never included.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return err.Error()
	}

	msg := richErr.Message
	if msg == "" {
		msg = err.Error()
	}
	if desc, ok := richErr.Metadata["description"].(string); ok && desc != "" {
		msg += ": " + desc
	}
	return msg
}
