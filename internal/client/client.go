// Package client talks to the schedule admin API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
)

const (
	DefaultPrefix  = "/api/v2/schedule"
	DefaultTimeout = 10 * time.Second
)

// Client wraps the admin endpoints. Error responses come back as the schedule
// package's error types, so callers handle them the same way the service does.
type Client struct {
	r *resty.Client

	mu         sync.Mutex
	statusETag string
	status     *packets.StatusResponse
}

// New builds a client for baseURL (scheme and host) using token as the bearer
// credential.
func New(baseURL, token string) *Client {
	r := resty.New().
		SetBaseURL(baseURL+DefaultPrefix).
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		r.SetAuthToken(token)
	}
	return &Client{r: r}
}

// Error is returned for failures that have no domain counterpart.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("schedule api: %d %s", e.Status, e.Message)
}

func (c *Client) ListSlots(ctx context.Context) ([]packets.SlotResponse, error) {
	var out []packets.SlotResponse
	resp, err := c.r.R().SetContext(ctx).SetResult(&out).SetError(&api.APIError{}).Get("/slots")
	return out, check(resp, err)
}

func (c *Client) GetSlot(ctx context.Context, slotID string) (packets.SlotResponse, error) {
	var out packets.SlotResponse
	resp, err := c.r.R().SetContext(ctx).SetResult(&out).SetError(&api.APIError{}).
		SetPathParam("slot_id", slotID).
		Get("/slots/{slot_id}")
	return out, check(resp, err)
}

func (c *Client) CreateSlot(ctx context.Context, req packets.CreateSlotRequest) (packets.SlotResponse, error) {
	var out packets.SlotResponse
	resp, err := c.r.R().SetContext(ctx).SetBody(req).SetResult(&out).SetError(&api.APIError{}).
		Post("/slots")
	return out, check(resp, err)
}

// UpdateSlot sends a partial update. A non-nil version is sent as If-Match.
func (c *Client) UpdateSlot(ctx context.Context, slotID string, req packets.UpdateSlotRequest, version *int) (packets.SlotResponse, error) {
	var out packets.SlotResponse
	resp, err := withVersion(c.r.R(), version).SetContext(ctx).SetBody(req).SetResult(&out).SetError(&api.APIError{}).
		SetPathParam("slot_id", slotID).
		Patch("/slots/{slot_id}")
	return out, check(resp, err)
}

func (c *Client) DeleteSlot(ctx context.Context, slotID string, version *int) error {
	resp, err := withVersion(c.r.R(), version).SetContext(ctx).SetError(&api.APIError{}).
		SetPathParam("slot_id", slotID).
		Delete("/slots/{slot_id}")
	return check(resp, err)
}

func (c *Client) ListItems(ctx context.Context, slotID string) ([]packets.ItemResponse, error) {
	var out []packets.ItemResponse
	resp, err := c.r.R().SetContext(ctx).SetResult(&out).SetError(&api.APIError{}).
		SetPathParam("slot_id", slotID).
		Get("/slots/{slot_id}/items")
	return out, check(resp, err)
}

func (c *Client) AddItem(ctx context.Context, slotID string, req packets.AddItemRequest) (packets.ItemResponse, error) {
	var out packets.ItemResponse
	resp, err := c.r.R().SetContext(ctx).SetBody(req).SetResult(&out).SetError(&api.APIError{}).
		SetPathParam("slot_id", slotID).
		Post("/slots/{slot_id}/items")
	if err := check(resp, err); err != nil {
		if dup, ok := err.(*schedule.DuplicateItemError); ok {
			dup.SlotID = slotID
		}
		return out, err
	}
	return out, nil
}

func (c *Client) RemoveItem(ctx context.Context, slotID, itemID string) error {
	resp, err := c.r.R().SetContext(ctx).SetError(&api.APIError{}).
		SetPathParams(map[string]string{"slot_id": slotID, "item_id": itemID}).
		Delete("/slots/{slot_id}/items/{item_id}")
	return check(resp, err)
}

func (c *Client) ReorderItems(ctx context.Context, slotID string, itemIDs []string) ([]packets.ItemResponse, error) {
	var out []packets.ItemResponse
	resp, err := c.r.R().SetContext(ctx).
		SetBody(packets.ReorderItemsRequest{ItemIDs: itemIDs}).
		SetResult(&out).SetError(&api.APIError{}).
		SetPathParam("slot_id", slotID).
		Put("/slots/{slot_id}/items/order")
	return out, check(resp, err)
}

func (c *Client) UpdateItem(ctx context.Context, slotID, itemID string, req packets.UpdateItemRequest) (packets.ItemResponse, error) {
	var out packets.ItemResponse
	resp, err := c.r.R().SetContext(ctx).SetBody(req).SetResult(&out).SetError(&api.APIError{}).
		SetPathParams(map[string]string{"slot_id": slotID, "item_id": itemID}).
		Patch("/slots/{slot_id}/items/{item_id}")
	return out, check(resp, err)
}

// Status fetches the schedule status. The last ETag is sent back, and a 304 answer
// returns the copy already held.
func (c *Client) Status(ctx context.Context) (packets.StatusResponse, error) {
	c.mu.Lock()
	etag := c.statusETag
	c.mu.Unlock()

	var out packets.StatusResponse
	req := c.r.R().SetContext(ctx).SetResult(&out).SetError(&api.APIError{})
	if etag != "" {
		req.SetHeader("If-None-Match", etag)
	}
	resp, err := req.Get("/status")
	if err == nil && resp.StatusCode() == http.StatusNotModified {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.status != nil {
			return *c.status, nil
		}
		return out, &Error{Status: http.StatusNotModified, Message: "no cached status"}
	}
	if err := check(resp, err); err != nil {
		return out, err
	}

	c.mu.Lock()
	c.statusETag = resp.Header().Get("ETag")
	c.status = &out
	c.mu.Unlock()
	return out, nil
}

func withVersion(r *resty.Request, version *int) *resty.Request {
	if version != nil {
		r.SetHeader("If-Match", strconv.Quote(strconv.Itoa(*version)))
	}
	return r
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, _ := resp.Error().(*api.APIError)
	if apiErr == nil || apiErr.Message == "" {
		return &Error{Status: resp.StatusCode(), Message: resp.Status()}
	}
	return domainError(resp.StatusCode(), apiErr)
}

func domainError(status int, e *api.APIError) error {
	switch e.Kind {
	case api.KindValidation:
		verr := &schedule.ValidationError{}
		fields := make([]string, 0, len(e.Fields))
		for f := range e.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			for _, msg := range e.Fields[f] {
				verr.Fields = append(verr.Fields, schedule.FieldError{Field: f, Message: msg})
			}
		}
		return verr
	case api.KindNotFound:
		return &schedule.NotFoundError{Kind: e.Resource, ID: e.ResourceID}
	case api.KindDuplicate:
		return &schedule.DuplicateItemError{AssetID: e.ResourceID}
	case api.KindConflict:
		return &schedule.ConflictError{Reason: strings.TrimPrefix(e.Message, "conflict: ")}
	case api.KindInvalidOrder:
		return &ordering.InvalidOrderError{
			Collection: e.Resource,
			Missing:    e.Fields["missing"],
			Unexpected: e.Fields["unexpected"],
			Duplicated: e.Fields["duplicated"],
		}
	}
	return &Error{Status: status, Message: e.Message}
}
