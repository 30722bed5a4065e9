package pagination

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-rental/internal/model"
)

// listingServer exposes an Engine the way the HTTP handler does, reduced
// to the parameters these tests send.
func listingServer(t *testing.T, e *Engine) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		page, err := e.FetchPage(r.Context(), PageRequest{
			Tier:    model.TierPublic,
			Limit:   limit,
			Cursor:  q.Get("cursor"),
			Sort:    model.SortMode(q.Get("sort")),
			Filters: Filters{Districts: q["district"]},
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_BrowserPagesOverHTTP(t *testing.T) {
	e, svc := newTestEngine(seedRooms(45))
	srv := listingServer(t, e)
	f, err := NewHTTPFetcher(srv.URL+"/", "")
	require.NoError(t, err)

	b := NewBrowser(f, model.TierPublic, 20)
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		p, err := b.Next(ctx)
		require.NoError(t, err)
		for _, id := range ids(p.Rows) {
			assert.False(t, seen[id], id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 45)
	assert.False(t, b.Snapshot().HasNext)
	assert.Equal(t, 3, svc.calls())
}

func TestHTTPFetcher_EncodesRequest(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`{"tier":"admin-tier-1","rows":[],"next_cursor":null,"reset":false}`))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL, "tok")
	require.NoError(t, err)
	minP := int64(1000)
	p, err := f.FetchPage(context.Background(), PageRequest{
		Limit: 10, Cursor: "c1", Sort: model.SortPriceDesc, IncludeTotal: true,
		Filters: Filters{Search: "gần chợ", MinPrice: &minP, Districts: []string{"Quận 1", "Quận 3"}, Access: "stairs"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierAdmin1, p.Tier)

	require.NotNil(t, got)
	assert.Equal(t, "/v1/admin/rooms", got.URL.Path)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	q := got.URL.Query()
	assert.Equal(t, "gần chợ", q.Get("q"))
	assert.Equal(t, "1000", q.Get("min_price"))
	assert.Equal(t, []string{"Quận 1", "Quận 3"}, q["district"])
	assert.Equal(t, "price_desc", q.Get("sort"))
	assert.Equal(t, "c1", q.Get("cursor"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "1", q.Get("total"))
	assert.Equal(t, "stairs", q.Get("access"))
}

func TestHTTPFetcher_ErrorMapping(t *testing.T) {
	status := http.StatusConflict
	body := `{"error":"cursor_reset"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status == http.StatusFound {
			http.Redirect(w, r, "/?auth=kicked", status)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	f, err := NewHTTPFetcher(srv.URL, "tok")
	require.NoError(t, err)

	_, err = f.FetchPage(context.Background(), PageRequest{})
	assert.ErrorIs(t, err, ErrCursorReset)

	status = http.StatusFound
	_, err = f.FetchPage(context.Background(), PageRequest{})
	assert.ErrorIs(t, err, ErrDeviceRejected)
	assert.Contains(t, err.Error(), "auth=kicked")

	status, body = http.StatusInternalServerError, `{"error":"database error"}`
	_, err = f.FetchPage(context.Background(), PageRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestHTTPFetcher_KeepsDeviceCookies(t *testing.T) {
	var presented []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("device_token"); err == nil {
			presented = append(presented, ck.Value)
		} else {
			http.SetCookie(w, &http.Cookie{Name: "device_token", Value: "t1", Path: "/"})
		}
		_, _ = w.Write([]byte(`{"tier":"admin-tier-1","rows":[],"next_cursor":null,"reset":false}`))
	}))
	defer srv.Close()
	f, err := NewHTTPFetcher(srv.URL, "tok")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.FetchPage(context.Background(), PageRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"t1", "t1"}, presented)
}
