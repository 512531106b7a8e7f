package endpoints

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// StatusSource resolves what a player should show.
type StatusSource interface {
	Now() time.Time
	GetStatus(ctx context.Context, now time.Time) (model.ScheduleStatus, error)
}

type PlayerController struct {
	src StatusSource
	hub *tv.Hub
}

// PlayerModule mounts the public player routes. hub may be nil, in which case the
// websocket route is not registered.
func PlayerModule(src StatusSource, hub *tv.Hub) api.Module {
	ctl := &PlayerController{src: src, hub: hub}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedule/status", ctl.getStatus)
		if hub != nil {
			c.GET("/schedule/ws", ctl.stream)
		}
	})
}

// GET /api/tv/schedule/status
func (p *PlayerController) getStatus(ctx *gin.Context) (any, *api.APIError) {
	status, err := p.src.GetStatus(ctx, p.src.Now())
	if err != nil {
		return nil, api.FromError(err, "get_status")
	}
	return api.WithETag(ctx, packets.NewPlayerStatusResponse(status))
}

// GET /api/tv/schedule/ws
func (p *PlayerController) stream(ctx *gin.Context) {
	if err := p.hub.Serve(ctx.Writer, ctx.Request); err != nil {
		log.Warn().Err(err).Str("client_ip", ctx.ClientIP()).Msg("[tv] websocket closed with error")
	}
}
