package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrDeviceRejected is returned when the admin listing redirected the
// client away because its device was kicked or over the limit.
var ErrDeviceRejected = errors.New("device rejected")

// HTTPFetcher is a PageFetcher over the listing API.  Without a token it
// reads /v1/rooms; with one it reads /v1/admin/rooms and keeps the device
// cookies in a jar so repeated calls count as one device.
type HTTPFetcher struct {
	base   *url.URL
	token  string
	client *http.Client
}

// NewHTTPFetcher builds a fetcher for the API at baseURL.
func NewHTTPFetcher(baseURL, token string) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPFetcher{
		base:  u,
		token: token,
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			// the gate answers rejections with a redirect to the home page
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}, nil
}

// FetchPage issues one GET.  A 409 cursor_reset becomes ErrCursorReset.
func (f *HTTPFetcher) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	path := "/v1/rooms"
	if f.token != "" {
		path = "/v1/admin/rooms"
	}
	u := *f.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = EncodeQuery(req).Encode()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	hreq.Header.Set("Accept", "application/json")
	if f.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.client.Do(hreq)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Page{}, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var p Page
		if err := json.Unmarshal(body, &p); err != nil {
			return Page{}, fmt.Errorf("decode page: %w", err)
		}
		return p, nil
	case resp.StatusCode == http.StatusConflict && strings.Contains(string(body), "cursor_reset"):
		return Page{}, ErrCursorReset
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return Page{}, fmt.Errorf("%w: %s", ErrDeviceRejected, resp.Header.Get("Location"))
	}
	return Page{}, fmt.Errorf("listing: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// EncodeQuery renders req as the listing query string.
func EncodeQuery(req PageRequest) url.Values {
	v := url.Values{}
	f := req.Filters
	if f.Search != "" {
		v.Set("q", f.Search)
	}
	if f.MinPrice != nil {
		v.Set("min_price", strconv.FormatInt(*f.MinPrice, 10))
	}
	if f.MaxPrice != nil {
		v.Set("max_price", strconv.FormatInt(*f.MaxPrice, 10))
	}
	for _, d := range f.Districts {
		v.Add("district", d)
	}
	for _, t := range f.RoomTypes {
		v.Add("room_type", t)
	}
	if f.Access != "" {
		v.Set("access", f.Access)
	}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if req.Sort != "" {
		v.Set("sort", string(req.Sort))
	}
	if req.Cursor != "" {
		v.Set("cursor", req.Cursor)
	}
	if req.Limit > 0 {
		v.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.IncludeTotal {
		v.Set("total", "1")
	}
	return v
}

var _ PageFetcher = (*HTTPFetcher)(nil)
