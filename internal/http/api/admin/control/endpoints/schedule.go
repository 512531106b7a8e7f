package endpoints

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
)

// ScheduleService is what the admin endpoints need from the schedule service.
type ScheduleService interface {
	Now() time.Time
	ListSlots(ctx context.Context) ([]model.Slot, error)
	GetSlot(ctx context.Context, slotID string) (model.Slot, error)
	CreateSlot(ctx context.Context, in schedule.SlotInput) (model.Slot, error)
	UpdateSlot(ctx context.Context, slotID string, patch schedule.SlotPatch, expectedVersion *int) (model.Slot, error)
	DeleteSlot(ctx context.Context, slotID string, expectedVersion *int) error

	ListItems(ctx context.Context, slotID string) ([]model.SlotItem, error)
	AddItem(ctx context.Context, slotID string, in schedule.ItemInput) (model.SlotItem, error)
	RemoveItem(ctx context.Context, slotID, itemID string) error
	ReorderItems(ctx context.Context, slotID string, itemIDs []string) ([]model.SlotItem, error)
	UpdateItem(ctx context.Context, slotID, itemID string, patch schedule.ItemPatch) (model.SlotItem, error)

	GetStatus(ctx context.Context, now time.Time) (model.ScheduleStatus, error)
}

var _ ScheduleService = (*schedule.Service)(nil)

type ScheduleController struct {
	svc ScheduleService
}

func newScheduleController(svc ScheduleService) *ScheduleController {
	return &ScheduleController{svc: svc}
}

// ScheduleModule mounts the authenticated slot, item and status endpoints.
func ScheduleModule(svc ScheduleService) api.Module {
	ctl := newScheduleController(svc)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/slots", ctl.listSlots)
		c.POST("/slots", ctl.createSlot)
		c.GET("/slots/:slot_id", ctl.getSlot)
		c.PATCH("/slots/:slot_id", ctl.updateSlot)
		c.PUT("/slots/:slot_id", ctl.updateSlot)
		c.DELETE("/slots/:slot_id", ctl.deleteSlot)

		c.GET("/slots/:slot_id/items", ctl.listItems)
		c.POST("/slots/:slot_id/items", ctl.addItem)
		c.PUT("/slots/:slot_id/items/order", ctl.reorderItems)
		c.PATCH("/slots/:slot_id/items/:item_id", ctl.updateItem)
		c.PUT("/slots/:slot_id/items/:item_id", ctl.updateItem)
		c.DELETE("/slots/:slot_id/items/:item_id", ctl.removeItem)

		c.GET("/status", ctl.getStatus)
	})
}

// expectedVersion reads the optional If-Match precondition. Quoted and weak forms
// are accepted.
func expectedVersion(ctx *gin.Context) (*int, *api.APIError) {
	raw := strings.TrimSpace(ctx.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "If-Match must be a slot version"}
	}
	return &v, nil
}

func versionHeaders(s model.Slot) map[string]string {
	return map[string]string{"ETag": strconv.Quote(strconv.Itoa(s.Version))}
}

// ===== Slots =====

func (s *ScheduleController) listSlots(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	slots, err := s.svc.ListSlots(ctx)
	if err != nil {
		return nil, api.FromError(err, "list_slots")
	}
	return packets.NewSlotResponses(slots, s.svc.Now()), nil
}

func (s *ScheduleController) createSlot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var req packets.CreateSlotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("[schedule] create slot: bad request")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	slot, err := s.svc.CreateSlot(ctx, req.ToInput())
	if err != nil {
		return nil, api.FromError(err, "create_slot")
	}
	log.Info().Int("user_id", user.ID).Str("slot_id", slot.ID).Msg("[schedule] slot created")
	return api.Response{
		Status:  http.StatusCreated,
		Body:    packets.NewSlotResponse(slot, s.svc.Now()),
		Headers: versionHeaders(slot),
	}, nil
}

func (s *ScheduleController) getSlot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	slot, err := s.svc.GetSlot(ctx, ctx.Param("slot_id"))
	if err != nil {
		return nil, api.FromError(err, "get_slot")
	}
	return api.Response{Body: packets.NewSlotResponse(slot, s.svc.Now()), Headers: versionHeaders(slot)}, nil
}

func (s *ScheduleController) updateSlot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	version, apiErr := expectedVersion(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var req packets.UpdateSlotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("[schedule] update slot: bad request")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	slot, err := s.svc.UpdateSlot(ctx, ctx.Param("slot_id"), req.ToPatch(), version)
	if err != nil {
		return nil, api.FromError(err, "update_slot")
	}
	log.Info().Int("user_id", user.ID).Str("slot_id", slot.ID).Int("version", slot.Version).
		Msg("[schedule] slot updated")
	return api.Response{Body: packets.NewSlotResponse(slot, s.svc.Now()), Headers: versionHeaders(slot)}, nil
}

func (s *ScheduleController) deleteSlot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	version, apiErr := expectedVersion(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	slotID := ctx.Param("slot_id")
	if err := s.svc.DeleteSlot(ctx, slotID, version); err != nil {
		return nil, api.FromError(err, "delete_slot")
	}
	log.Info().Int("user_id", user.ID).Str("slot_id", slotID).Msg("[schedule] slot deleted")
	return api.NoContent(), nil
}

// ===== Items =====

func (s *ScheduleController) listItems(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	items, err := s.svc.ListItems(ctx, ctx.Param("slot_id"))
	if err != nil {
		return nil, api.FromError(err, "list_items")
	}
	return packets.NewItemResponses(items), nil
}

func (s *ScheduleController) addItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var req packets.AddItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("[schedule] add item: bad request")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	item, err := s.svc.AddItem(ctx, ctx.Param("slot_id"), req.ToInput())
	if err != nil {
		return nil, api.FromError(err, "add_item")
	}
	return api.Created(packets.NewItemResponse(item)), nil
}

func (s *ScheduleController) reorderItems(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var req packets.ReorderItemsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("[schedule] reorder items: bad request")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	items, err := s.svc.ReorderItems(ctx, ctx.Param("slot_id"), req.ItemIDs)
	if err != nil {
		return nil, api.FromError(err, "reorder_items")
	}
	return packets.NewItemResponses(items), nil
}

func (s *ScheduleController) updateItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var req packets.UpdateItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("[schedule] update item: bad request")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	item, err := s.svc.UpdateItem(ctx, ctx.Param("slot_id"), ctx.Param("item_id"), req.ToPatch())
	if err != nil {
		return nil, api.FromError(err, "update_item")
	}
	return packets.NewItemResponse(item), nil
}

func (s *ScheduleController) removeItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	if err := s.svc.RemoveItem(ctx, ctx.Param("slot_id"), ctx.Param("item_id")); err != nil {
		return nil, api.FromError(err, "remove_item")
	}
	return api.NoContent(), nil
}

// ===== Status =====

func (s *ScheduleController) getStatus(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	status, err := s.svc.GetStatus(ctx, s.svc.Now())
	if err != nil {
		return nil, api.FromError(err, "get_status")
	}
	return api.WithETag(ctx, packets.NewStatusResponse(status))
}
