package directory

import (
	"bytes"
	"log/slog"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/pkg/platform/paging"
	"intranet/pkg/testutil"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	svc, err := NewService(NewInMemoryStore())
	require.NoError(t, err)
	h := NewHandler(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	r.Route("/admin", h.RegisterAdmin)
	return r
}

func TestHandler_ImportMultipartThenSearch(t *testing.T) {
	router := newRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "staff.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("email,department\nann.lee@corp.example,HR\nben@corp.example,IT\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/admin/employees/import", body.String())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusOK(t, rr)
	report := testutil.UnmarshalResponse[ImportReport](t, rr)
	assert.Equal(t, 2, report.Created)
	assert.Empty(t, report.Errors)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/directory?department=hr"))
	testutil.AssertStatusOK(t, rr)
	page := testutil.UnmarshalResponse[paging.Result[Employee]](t, rr)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Ann", page.Items[0].FirstName)
	assert.Equal(t, "Lee", page.Items[0].LastName)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/directory/departments"))
	testutil.AssertStatusOK(t, rr)
}

func TestHandler_ImportRawCSV(t *testing.T) {
	router := newRouter(t)
	req := testutil.NewRequestWithBody(t, http.MethodPost, "/admin/employees/import", "first_name\nNo email\n")
	req.Header.Set("Content-Type", "text/csv")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestHandler_CreateAndGet(t *testing.T) {
	router := newRouter(t)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/employees", map[string]any{
		"first_name": "Kim", "last_name": "Park", "email": "kim@corp.example", "job_title": "Engineer",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[Employee](t, rr)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/directory/"+created.ID.String()))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "job_title", "Engineer")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/directory/"+created.ID.String()+"/reports"))
	testutil.AssertStatusOK(t, rr)
}
