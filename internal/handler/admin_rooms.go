package handler

// admin_rooms.go holds the admin write endpoints.  Every successful write
// bumps the room's updated_at (so it moves to the top of updated_desc) and
// publishes a room.changed event.

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-rental/internal/middleware"
	"github.com/iliyamo/room-rental/internal/model"
	"github.com/iliyamo/room-rental/internal/queue"
	"github.com/iliyamo/room-rental/internal/repository"
)

// RoomWriter is the subset of repository.RoomRepo the admin handler uses.
type RoomWriter interface {
	Create(ctx context.Context, rm *model.Room) error
	GetByID(ctx context.Context, id string) (model.Room, error)
	Update(ctx context.Context, id string, p repository.RoomPatch) (model.Room, error)
	UpdatePrice(ctx context.Context, id string, price int64) error
	SetMedia(ctx context.Context, id string, media []string) error
	Delete(ctx context.Context, id string) error
}

// RoomEventPublisher publishes room.changed events.
type RoomEventPublisher interface {
	PublishRoomChanged(ctx context.Context, ev queue.RoomChangedEvent) error
}

// AdminRoomHandler bundles dependencies for admin room writes.  Events may
// be nil, in which case nothing is published.
type AdminRoomHandler struct {
	Rooms  RoomWriter
	Events RoomEventPublisher
	// publishTimeout bounds each asynchronous publish.
	publishTimeout time.Duration
}

// NewAdminRoomHandler panics when rooms is nil.
func NewAdminRoomHandler(rooms RoomWriter, events RoomEventPublisher) *AdminRoomHandler {
	if rooms == nil {
		panic("nil room writer passed to NewAdminRoomHandler")
	}
	return &AdminRoomHandler{Rooms: rooms, Events: events, publishTimeout: 5 * time.Second}
}

type roomReq struct {
	Title         *string   `json:"title"`
	District      *string   `json:"district"`
	RoomType      *string   `json:"room_type"`
	PriceVND      *int64    `json:"price_vnd"`
	Access        *string   `json:"access"`
	Status        *string   `json:"status"`
	Amenities     *[]string `json:"amenities"`
	Media         []string  `json:"media"`
	Address       *string   `json:"address"`
	InternalNote  *string   `json:"internal_note"`
	LandlordName  *string   `json:"landlord_name"`
	LandlordPhone *string   `json:"landlord_phone"`
	CommissionPct *float64  `json:"commission_pct"`
}

type priceReq struct {
	PriceVND *int64 `json:"price_vnd"`
}

type mediaReq struct {
	Media []string `json:"media"`
}

// touchesLandlord reports whether the request sets tier-2 only columns.
func (r roomReq) touchesLandlord() bool {
	return r.LandlordName != nil || r.LandlordPhone != nil || r.CommissionPct != nil
}

// validate normalizes enum fields in place.
func (r *roomReq) validate() string {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return "title must not be empty"
		}
		r.Title = &t
	}
	if r.PriceVND != nil && *r.PriceVND < 0 {
		return "price_vnd must be >= 0"
	}
	if r.Access != nil {
		a := strings.ToLower(strings.TrimSpace(*r.Access))
		if a != "" && a != model.AccessElevator && a != model.AccessStairs {
			return "access must be elevator or stairs"
		}
		r.Access = &a
	}
	if r.Status != nil {
		s := strings.ToUpper(strings.TrimSpace(*r.Status))
		if !model.ValidRoomStatus(s) {
			return "unknown status"
		}
		r.Status = &s
	}
	if r.CommissionPct != nil && (*r.CommissionPct < 0 || *r.CommissionPct > 100) {
		return "commission_pct must be between 0 and 100"
	}
	return ""
}

func (r roomReq) patch() repository.RoomPatch {
	return repository.RoomPatch{
		Title:         r.Title,
		District:      r.District,
		RoomType:      r.RoomType,
		PriceVND:      r.PriceVND,
		Access:        r.Access,
		Status:        r.Status,
		Amenities:     r.Amenities,
		Address:       r.Address,
		InternalNote:  r.InternalNote,
		LandlordName:  r.LandlordName,
		LandlordPhone: r.LandlordPhone,
		CommissionPct: r.CommissionPct,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Create handles POST /v1/admin/rooms.
func (h *AdminRoomHandler) Create(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == nil || req.PriceVND == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and price_vnd required"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if req.touchesLandlord() && middleware.Role(c) != model.RoleSuperAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "landlord fields need SUPER_ADMIN"})
	}

	rm := model.Room{
		Title:         *req.Title,
		District:      strings.TrimSpace(deref(req.District)),
		RoomType:      strings.TrimSpace(deref(req.RoomType)),
		PriceVND:      *req.PriceVND,
		Access:        deref(req.Access),
		Status:        deref(req.Status),
		Amenities:     deref(req.Amenities),
		Media:         req.Media,
		Address:       deref(req.Address),
		InternalNote:  deref(req.InternalNote),
		LandlordName:  deref(req.LandlordName),
		LandlordPhone: deref(req.LandlordPhone),
		CommissionPct: deref(req.CommissionPct),
	}
	if err := h.Rooms.Create(c.Request().Context(), &rm); err != nil {
		c.Logger().Errorf("create room: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.publish(c, rm.ID, queue.ActionCreated, &rm.PriceVND)
	return c.JSON(http.StatusCreated, model.ProjectRoom(middleware.Tier(c), rm))
}

// Patch handles PATCH /v1/admin/rooms/:id.
func (h *AdminRoomHandler) Patch(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if req.touchesLandlord() && middleware.Role(c) != model.RoleSuperAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "landlord fields need SUPER_ADMIN"})
	}
	rm, err := h.Rooms.Update(c.Request().Context(), id, req.patch())
	if err != nil {
		return h.writeErr(c, "patch room", err)
	}
	h.publish(c, id, queue.ActionUpdated, req.PriceVND)
	return c.JSON(http.StatusOK, model.ProjectRoom(middleware.Tier(c), rm))
}

// UpdatePrice handles PUT /v1/admin/rooms/:id/price.
func (h *AdminRoomHandler) UpdatePrice(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	var req priceReq
	if err := c.Bind(&req); err != nil || req.PriceVND == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_vnd required"})
	}
	if *req.PriceVND < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_vnd must be >= 0"})
	}
	if err := h.Rooms.UpdatePrice(c.Request().Context(), id, *req.PriceVND); err != nil {
		return h.writeErr(c, "update price", err)
	}
	h.publish(c, id, queue.ActionPrice, req.PriceVND)
	return c.NoContent(http.StatusNoContent)
}

// SetMedia handles PUT /v1/admin/rooms/:id/media.  The body lists URLs of
// already uploaded files; the list replaces the current one.
func (h *AdminRoomHandler) SetMedia(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	var req mediaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	media := make([]string, 0, len(req.Media))
	for _, u := range req.Media {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "media must be absolute URLs"})
		}
		media = append(media, u)
	}
	if err := h.Rooms.SetMedia(c.Request().Context(), id, media); err != nil {
		return h.writeErr(c, "set media", err)
	}
	h.publish(c, id, queue.ActionMedia, nil)
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /v1/admin/rooms/:id (SUPER_ADMIN only).
func (h *AdminRoomHandler) Delete(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Rooms.Delete(c.Request().Context(), id); err != nil {
		return h.writeErr(c, "delete room", err)
	}
	h.publish(c, id, queue.ActionDeleted, nil)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminRoomHandler) writeErr(c echo.Context, op string, err error) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	c.Logger().Errorf("%s: %v", op, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// publish sends the event in the background; a broker outage never fails
// the write that already committed.
func (h *AdminRoomHandler) publish(c echo.Context, roomID, action string, price *int64) {
	if h.Events == nil {
		return
	}
	ev := queue.RoomChangedEvent{
		RoomID:    roomID,
		Action:    action,
		ActorID:   middleware.UserID(c),
		ActorRole: middleware.Role(c),
		PriceVND:  price,
		ChangedAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.publishTimeout)
		defer cancel()
		_ = h.Events.PublishRoomChanged(ctx, ev)
	}()
}
