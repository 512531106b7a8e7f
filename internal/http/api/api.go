package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
)

// Error kinds let clients map a failure back to its domain error without parsing
// the message.
const (
	KindValidation   = "validation"
	KindNotFound     = "not_found"
	KindDuplicate    = "duplicate_item"
	KindConflict     = "conflict"
	KindInvalidOrder = "invalid_order"
)

// APIError is the error body every endpoint returns. Fields holds per-field messages
// for validation failures and the offending ids for an invalid order.
type APIError struct {
	Code       int                 `json:"-"`
	Kind       string              `json:"kind,omitempty"`
	Message    string              `json:"error"`
	Fields     map[string][]string `json:"fields,omitempty"`
	Resource   string              `json:"resource,omitempty"`
	ResourceID string              `json:"resource_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Response lets a handler pick the status code and headers. Handlers that return any
// other value answer 200 with it as the JSON body.
type Response struct {
	Status  int
	Body    any
	Headers map[string]string
}

func Created(body any) Response { return Response{Status: http.StatusCreated, Body: body} }

func NoContent() Response { return Response{Status: http.StatusNoContent} }

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, apiErr := h(ctx, user)
		render(ctx, result, apiErr)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		render(ctx, result, apiErr)
	}
}

func render(ctx *gin.Context, result any, apiErr *APIError) {
	if apiErr != nil {
		ctx.JSON(apiErr.Code, apiErr)
		return
	}

	resp, ok := result.(Response)
	if !ok {
		ctx.JSON(http.StatusOK, result)
		return
	}
	for k, v := range resp.Headers {
		ctx.Header(k, v)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.Body == nil || resp.Status == http.StatusNoContent || resp.Status == http.StatusNotModified {
		ctx.Status(resp.Status)
		return
	}
	ctx.JSON(resp.Status, resp.Body)
}

// FromError maps a schedule error onto its HTTP form. Unexpected errors are logged
// and hidden behind a generic message.
func FromError(err error, op string) *APIError {
	var (
		verr     *schedule.ValidationError
		nf       *schedule.NotFoundError
		dup      *schedule.DuplicateItemError
		conflict *schedule.ConflictError
		order    *schedule.InvalidOrderError
	)
	switch {
	case errors.As(err, &verr):
		return &APIError{Code: http.StatusBadRequest, Kind: KindValidation, Message: "validation failed", Fields: verr.ByField()}
	case errors.As(err, &nf):
		return &APIError{Code: http.StatusNotFound, Kind: KindNotFound, Message: nf.Error(), Resource: nf.Kind, ResourceID: nf.ID}
	case errors.As(err, &dup):
		return &APIError{Code: http.StatusConflict, Kind: KindDuplicate, Message: dup.Error(), Resource: "asset", ResourceID: dup.AssetID}
	case errors.As(err, &conflict):
		return &APIError{Code: http.StatusConflict, Kind: KindConflict, Message: conflict.Error()}
	case errors.As(err, &order):
		fields := map[string][]string{}
		for name, ids := range map[string][]string{"missing": order.Missing, "unexpected": order.Unexpected, "duplicated": order.Duplicated} {
			if len(ids) > 0 {
				fields[name] = ids
			}
		}
		return &APIError{Code: http.StatusUnprocessableEntity, Kind: KindInvalidOrder, Message: order.Error(), Fields: fields, Resource: order.Collection}
	default:
		log.Error().Err(err).Str("op", op).Msg("[api] unexpected error")
		return &APIError{Code: http.StatusInternalServerError, Message: "could not " + strings.ReplaceAll(op, "_", " ")}
	}
}

// WithETag answers 304 when the client already holds body, and otherwise returns
// body tagged with a hash of its JSON form.
func WithETag(ctx *gin.Context, body any) (any, *APIError) {
	raw, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("[api] etag: could not encode body")
		return nil, &APIError{Code: http.StatusInternalServerError, Message: "could not encode response"}
	}
	h := fnv.New64a()
	_, _ = h.Write(raw)
	etag := fmt.Sprintf("\"%016x\"", h.Sum64())

	headers := map[string]string{"ETag": etag, "Cache-Control": "no-cache"}
	if matchesETag(ctx.GetHeader("If-None-Match"), etag) || matchesETag(ctx.GetHeader("X-If-None-Match"), etag) {
		return Response{Status: http.StatusNotModified, Headers: headers}, nil
	}
	return Response{Status: http.StatusOK, Body: body, Headers: headers}, nil
}

func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
