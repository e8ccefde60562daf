package social

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderError is a failed call to a platform API, normalized across
// platforms. Raw keeps provider specific fields such as TikTok's log_id.
type ProviderError struct {
	Platform    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

// Error renders "<platform> <operation> failed: <detail>" where detail is
// the first of description, code, cause or status that is set.
func (e *ProviderError) Error() string {
	if e == nil {
		return "provider request failed"
	}

	var b strings.Builder
	for _, part := range []string{e.Platform, e.Operation} {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	if b.Len() == 0 {
		b.WriteString("provider")
	}
	b.WriteString(" failed")

	switch {
	case e.Description != "":
		b.WriteString(": " + e.Description)
	case e.Code != "":
		b.WriteString(": " + e.Code)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	case e.Status != 0:
		b.WriteString(": status " + strconv.Itoa(e.Status))
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Rejected reports whether the platform answered with a 4xx, meaning the
// request itself was refused (bad code, revoked token, missing scope).
// Transport failures and 5xx responses are not rejections.
func (e *ProviderError) Rejected() bool {
	if e == nil {
		return false
	}
	return e.Status >= http.StatusBadRequest && e.Status < http.StatusInternalServerError
}

// Metadata returns the populated fields keyed for go-errors metadata.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := make(map[string]any, 6)
	set := func(key, value string) {
		if value != "" {
			meta[key] = value
		}
	}
	set("platform", e.Platform)
	set("operation", e.Operation)
	set("code", e.Code)
	set("description", e.Description)
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}
	return meta
}

// WrapProviderError returns a clone of base with err as its source. A
// *ProviderError contributes its metadata; any other error its message.
func WrapProviderError(base *goerrors.Error, platform, operation string, err error) error {
	if base == nil {
		return err
	}

	meta := (&ProviderError{Platform: platform, Operation: operation}).Metadata()

	var perr *ProviderError
	switch {
	case errors.As(err, &perr):
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	case err != nil:
		meta["error"] = err.Error()
	}

	wrapped := base.Clone()
	wrapped.Source = err
	return wrapped.WithMetadata(meta)
}
