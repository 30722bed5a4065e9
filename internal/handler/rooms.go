// Package handler exposes HTTP handlers for both authenticated and public endpoints.
// This file defines the room listing endpoints.  Both the public and the
// admin listing share one query contract; only the visibility tier differs.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-rental/internal/middleware"
	"github.com/iliyamo/room-rental/internal/model"
	"github.com/iliyamo/room-rental/internal/pagination"
)

// RoomsHandler serves keyset pages of the room listing.
type RoomsHandler struct {
	Pages pagination.PageFetcher
}

// NewRoomsHandler panics on a nil fetcher.
func NewRoomsHandler(pages pagination.PageFetcher) *RoomsHandler {
	if pages == nil {
		panic("nil page fetcher passed to NewRoomsHandler")
	}
	return &RoomsHandler{Pages: pages}
}

// List answers GET /v1/rooms with the public projection.  Any credentials
// sent along are ignored so the response can be cached per URL.
func (h *RoomsHandler) List(c echo.Context) error {
	return h.page(c, model.TierPublic)
}

// AdminList answers GET /v1/admin/rooms with the caller's tier.
func (h *RoomsHandler) AdminList(c echo.Context) error {
	return h.page(c, middleware.Tier(c))
}

func (h *RoomsHandler) page(c echo.Context, tier model.RoleTier) error {
	req, err := ParsePageRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_query", "message": err.Error()})
	}
	req.Tier = tier

	page, err := h.Pages.FetchPage(c.Request().Context(), req)
	switch {
	case errors.Is(err, pagination.ErrCursorReset):
		return c.JSON(http.StatusConflict, echo.Map{"error": "cursor_reset", "message": "the page anchor no longer exists; start from the first page"})
	case err != nil:
		c.Logger().Errorf("rooms page: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, page)
}

// ParsePageRequest reads the listing query string:
//
//	q, min_price, max_price, district (repeatable), room_type (repeatable),
//	access, status, sort, cursor, limit, total=1
//
// Unknown sort modes fall back to updated_desc inside the engine; only
// unparsable numbers are rejected.
func ParsePageRequest(c echo.Context) (pagination.PageRequest, error) {
	qs := c.QueryParams()
	req := pagination.PageRequest{
		Cursor: strings.TrimSpace(qs.Get("cursor")),
		Sort:   model.SortMode(strings.TrimSpace(qs.Get("sort"))),
		Filters: pagination.Filters{
			Search:    qs.Get("q"),
			Districts: splitMulti(qs["district"]),
			RoomTypes: splitMulti(qs["room_type"]),
			Access:    qs.Get("access"),
			Status:    qs.Get("status"),
		},
		IncludeTotal: qs.Get("total") == "1" || strings.EqualFold(qs.Get("total"), "true"),
	}
	var err error
	if req.Filters.MinPrice, err = optInt64(qs.Get("min_price"), "min_price"); err != nil {
		return req, err
	}
	if req.Filters.MaxPrice, err = optInt64(qs.Get("max_price"), "max_price"); err != nil {
		return req, err
	}
	if s := strings.TrimSpace(qs.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, errors.New("limit must be an integer")
		}
		req.Limit = n
	}
	return req, nil
}

func optInt64(s, name string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

// splitMulti accepts both ?district=a&district=b and ?district=a,b.
func splitMulti(vals []string) []string {
	var out []string
	for _, v := range vals {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}
