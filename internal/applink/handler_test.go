package applink

import (
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/pkg/testutil"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	svc, err := NewService(NewInMemoryStore())
	require.NoError(t, err)
	h := NewHandler(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	r.Route("/admin", h.RegisterAdmin)
	return r
}

type linksResponse struct {
	Links []AppLink `json:"links"`
}

type launcherResponse struct {
	Groups []Group `json:"groups"`
}

func TestHandler_LauncherFlow(t *testing.T) {
	router := newTestRouter(t)
	var ids []uuid.UUID

	testutil.Given(t, "two links in the IT category", func(t *testing.T) {
		for _, name := range []string{"Service Desk", "VPN"} {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/apps", map[string]any{
				"name":     name,
				"url":      "https://it.example.com/" + strings.ReplaceAll(name, " ", "-"),
				"category": "IT",
			})
			rr := testutil.DoRequest(router, req)
			testutil.AssertStatus(t, rr, http.StatusCreated)
			ids = append(ids, testutil.UnmarshalResponse[AppLink](t, rr).ID)
		}
	})

	testutil.When(t, "the admin swaps them", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/apps/order", map[string]any{
			"ids": []string{ids[1].String(), ids[0].String()},
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[linksResponse](t, rr)
		require.Len(t, resp.Links, 2)
		assert.Equal(t, "VPN", resp.Links[0].Name)
	})

	testutil.Then(t, "the launcher shows the new order", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/apps"))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[launcherResponse](t, rr)
		require.Len(t, resp.Groups, 1)
		assert.Equal(t, "IT", resp.Groups[0].Category)
		require.Len(t, resp.Groups[0].Links, 2)
		assert.Equal(t, "VPN", resp.Groups[0].Links[0].Name)
	})

	testutil.Then(t, "hiding a link removes it from the launcher", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/apps/"+ids[1].String(), map[string]any{
			"name": "VPN", "url": "https://it.example.com/vpn", "category": "IT", "visible": false,
		})
		testutil.AssertStatusOK(t, testutil.DoRequest(router, req))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/apps"))
		resp := testutil.UnmarshalResponse[launcherResponse](t, rr)
		require.Len(t, resp.Groups, 1)
		assert.Len(t, resp.Groups[0].Links, 1)
	})
}

func TestHandler_Errors(t *testing.T) {
	router := newTestRouter(t)

	t.Run("invalid url", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/apps", map[string]any{"name": "x", "url": "mailto:it@example.com"})
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "validation_error")
	})
	t.Run("bad id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/admin/apps/123"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
	t.Run("missing link", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/apps/"+uuid.NewString()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}
