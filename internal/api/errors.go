package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/localmind/assistant/internal/digest"
)

// errorKind classifies a failure per spec.md §7's error-handling design —
// each kind carries its own propagation policy and user-facing status.
type errorKind string

const (
	kindTransientIO        errorKind = "transient_io"
	kindParse              errorKind = "parse"
	kindPolicyBlock        errorKind = "policy_block"
	kindAuthorityViolation errorKind = "authority_violation"
	kindLockContention     errorKind = "lock_contention"
	kindHardRoutingError   errorKind = "hard_routing_error"
	kindFatalConfig        errorKind = "fatal_config"
	kindNotFound           errorKind = "not_found"
)

// classifyError maps err to a §7 error kind using the same
// sentinel-error-first, string-fallback approach tarsy's
// pkg/api/errors.go mapServiceError uses for *services.ValidationError /
// services.ErrNotFound / services.ErrNotCancellable.
func classifyError(err error) errorKind {
	switch {
	case errors.Is(err, digest.ErrLocked):
		return kindLockContention
	case strings.Contains(err.Error(), "not found"):
		return kindNotFound
	case strings.Contains(err.Error(), "rejected_by_authority"), strings.Contains(err.Error(), "no executor configured"):
		return kindAuthorityViolation
	case strings.Contains(err.Error(), "hard error"), strings.Contains(err.Error(), "unavailable"):
		return kindHardRoutingError
	default:
		return kindTransientIO
	}
}

func (k errorKind) httpStatus() int {
	switch k {
	case kindNotFound:
		return http.StatusNotFound
	case kindParse:
		return http.StatusBadRequest
	case kindPolicyBlock, kindAuthorityViolation:
		return http.StatusForbidden
	case kindLockContention:
		return http.StatusConflict
	case kindHardRoutingError:
		return http.StatusServiceUnavailable
	case kindFatalConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the "❌ Fehler: {reason}" envelope spec.md §7
// requires for user-visible normal errors, at the status classifyError
// resolves to. transient_io errors are logged at error level since they
// represent an unexpected failure rather than an expected policy outcome.
func respondError(c *gin.Context, err error) {
	kind := classifyError(err)
	if kind == kindTransientIO || kind == kindFatalConfig {
		slog.Error("api request failed", "kind", kind, "error", err)
	}
	c.JSON(kind.httpStatus(), gin.H{
		"error": fmt.Sprintf("❌ Fehler: %s", err.Error()),
		"kind":  string(kind),
	})
}
