package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
)

// Module attaches a feature's endpoints to a Controller.
type Module interface {
	Mount(c *Controller)
}

type ModuleFunc func(c *Controller)

func (f ModuleFunc) Mount(c *Controller) { f(c) }

// GroupConfig describes one mounted group. SecretKey is required when Auth is set.
type GroupConfig struct {
	Prefix     string
	Auth       bool
	SecretKey  string
	Middleware []gin.HandlerFunc
}

// MountGroup mounts modules under cfg.Prefix, behind JWT verification when cfg.Auth
// is set, and returns the group. A misconfigured group is a startup error.
func MountGroup(parent gin.IRouter, cfg GroupConfig, modules ...Module) (*gin.RouterGroup, error) {
	var grp *gin.RouterGroup
	switch v := parent.(type) {
	case *gin.Engine:
		grp = v.Group(cfg.Prefix)
	case *gin.RouterGroup:
		grp = v
		if cfg.Prefix != "" {
			grp = v.Group(cfg.Prefix)
		}
	default:
		return nil, fmt.Errorf("api: unsupported router type %T", parent)
	}

	for _, mw := range cfg.Middleware {
		grp.Use(mw)
	}
	if cfg.Auth {
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("api: group %q needs auth but has no secret key", cfg.Prefix)
		}
		grp.Use(middleware.JWTMiddleware(cfg.SecretKey))
	}

	controller := &Controller{Group: grp}
	for _, m := range modules {
		m.Mount(controller)
	}
	log.Debug().Str("prefix", grp.BasePath()).Bool("auth", cfg.Auth).Int("modules", len(modules)).
		Msg("[api] group mounted")
	return grp, nil
}
