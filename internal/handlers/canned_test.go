package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/canned"
)

type fakeCannedRepo struct {
	listed   []canned.ListFilter
	response []canned.Response
}

func (f *fakeCannedRepo) FindByID(_ context.Context, id int64) (canned.Response, error) {
	return canned.Response{}, canned.ErrNotFound
}

func (f *fakeCannedRepo) ListActive(_ context.Context, filter canned.ListFilter) ([]canned.Response, error) {
	f.listed = append(f.listed, filter)
	return f.response, nil
}

func (f *fakeCannedRepo) Create(_ context.Context, input canned.UpsertInput) (canned.Response, error) {
	return canned.Response{ID: 1, Code: input.Code, Text: input.Text, IsActive: input.IsActive}, nil
}

func (f *fakeCannedRepo) Update(_ context.Context, id int64, input canned.UpsertInput) (canned.Response, error) {
	return canned.Response{}, canned.ErrNotFound
}

func (f *fakeCannedRepo) Delete(_ context.Context, id int64) error {
	return canned.ErrNotFound
}

func newCannedTest(t *testing.T) (*CannedHandler, *fakeCannedRepo) {
	t.Helper()
	repo := &fakeCannedRepo{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCannedHandler(log, canned.NewService(log, repo)), repo
}

func moderatorContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder) echo.Context {
	c := e.NewContext(req, rec)
	c.Set("user", &jwt.Token{
		Valid:  true,
		Claims: jwt.MapClaims{"moderator_id": float64(7)},
	})
	return c
}

func TestCannedListPassesFilter(t *testing.T) {
	t.Parallel()

	h, repo := newCannedTest(t)
	repo.response = []canned.Response{{ID: 1, Code: "ack", Text: "We are on it."}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/canned-responses?source_id=3&q=ack", nil)
	rec := httptest.NewRecorder()
	c := moderatorContext(e, req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("List: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(repo.listed) != 1 {
		t.Fatalf("expected one repository call, got %d", len(repo.listed))
	}
	if got := repo.listed[0]; got.SourceID != 3 || got.Query != "ack" {
		t.Fatalf("filter = %+v", got)
	}

	var body struct {
		Responses []canned.Response `json:"canned_responses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Responses) != 1 || body.Responses[0].Code != "ack" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCannedListRequiresModerator(t *testing.T) {
	t.Parallel()

	h, repo := newCannedTest(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/canned-responses", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.List(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %v", err)
	}
	if len(repo.listed) != 0 {
		t.Fatal("the repository must not be queried without a moderator")
	}
}

func TestCannedGetMissing(t *testing.T) {
	t.Parallel()

	h, _ := newCannedTest(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/canned-responses/42", nil)
	c := moderatorContext(e, req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")

	err := h.Get(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing response, got %v", err)
	}
}
