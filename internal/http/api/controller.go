package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// Controller is the gin group a Module attaches to. Handlers may use either the
// authenticated or the public signature, or be plain gin handlers.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h any)    { c.Handle(http.MethodGet, path, h) }
func (c *Controller) POST(path string, h any)   { c.Handle(http.MethodPost, path, h) }
func (c *Controller) PUT(path string, h any)    { c.Handle(http.MethodPut, path, h) }
func (c *Controller) PATCH(path string, h any)  { c.Handle(http.MethodPatch, path, h) }
func (c *Controller) DELETE(path string, h any) { c.Handle(http.MethodDelete, path, h) }

func (c *Controller) Handle(method, path string, h any) {
	c.Group.Handle(method, path, wrap(h))
}

// wrap panics on an unknown handler type, at route registration like gin does for
// conflicting routes.
func wrap(h any) gin.HandlerFunc {
	switch fn := h.(type) {
	case HandlerFuncWithAuth:
		return ResolveEndpointWithAuth(fn)
	case func(*gin.Context, *model.User) (any, *APIError):
		return ResolveEndpointWithAuth(fn)
	case HandlerFunc:
		return ResolveEndpoint(fn)
	case func(*gin.Context) (any, *APIError):
		return ResolveEndpoint(fn)
	case gin.HandlerFunc:
		return fn
	case func(*gin.Context):
		return fn
	}
	panic(fmt.Sprintf("api: unsupported handler type %T", h))
}
