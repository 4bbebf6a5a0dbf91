package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRequestService struct {
	request        *models.Request
	err            error
	lastQuery      dto.RequestQuery
	lastTransition dto.TransitionRequest
	letterPath     string
}

func (s *stubRequestService) Create(_ context.Context, _ *models.JWTClaims, _ dto.CreateRequestRequest) (*models.Request, error) {
	return s.request, s.err
}

func (s *stubRequestService) Get(_ context.Context, _ *models.JWTClaims, _ string) (*models.Request, error) {
	return s.request, s.err
}

func (s *stubRequestService) List(_ context.Context, _ *models.JWTClaims, query dto.RequestQuery) ([]models.Request, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	if s.request == nil {
		return nil, nil
	}
	return []models.Request{*s.request}, nil
}

func (s *stubRequestService) Transition(_ context.Context, _ *models.JWTClaims, _ string, req dto.TransitionRequest) (*models.Request, error) {
	s.lastTransition = req
	return s.request, s.err
}

func (s *stubRequestService) OverrideStatus(_ context.Context, _ *models.JWTClaims, _ string, _ dto.OverrideStatusRequest) (*models.Request, error) {
	return s.request, s.err
}

func (s *stubRequestService) LetterPath(_ context.Context, _ *models.JWTClaims, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.letterPath, nil
}

type stubSigner struct{}

func (stubSigner) Generate(requestID, relPath string) (string, time.Time, error) {
	return "token-" + requestID, time.Now().Add(time.Hour), nil
}

func (stubSigner) Parse(token string) (string, string, time.Time, error) {
	if !strings.HasPrefix(token, "token-") {
		return "", "", time.Time{}, appErrors.ErrUnauthorized
	}
	return strings.TrimPrefix(token, "token-"), "req-1.pdf", time.Now().Add(time.Hour), nil
}

type stubOpener struct{ data string }

func (s stubOpener) Open(string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.data)), nil
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsContextKey, claims)
		c.Next()
	}
}

func testRouter(h *RequestHandler, claims *models.JWTClaims) *gin.Engine {
	router := gin.New()
	group := router.Group("/", withClaims(claims))
	group.POST("/requests", h.Create)
	group.GET("/requests", h.List)
	group.GET("/requests/:id", h.Get)
	group.POST("/requests/:id/transition", h.Transition)
	group.POST("/requests/:id/override-status", h.Override)
	group.GET("/requests/:id/letter", h.LetterLink)
	router.GET("/letters/download", h.DownloadLetter)
	return router
}

func schoolTestClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleSchool, SchoolID: "school-1"}
}

func sampleRequest() *models.Request {
	return &models.Request{
		ID:       "req-1",
		SchoolID: "school-1",
		AgencyID: "agency-1",
		Topic:    "Recycling drive",
		Status:   workflow.StatusSent,
	}
}

func TestRequestHandlerCreate(t *testing.T) {
	stub := &stubRequestService{request: sampleRequest()}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	body, _ := json.Marshal(dto.CreateRequestRequest{
		AgencyID:        "agency-1",
		Topic:           "Recycling drive",
		Audience:        []string{"grade-10"},
		Participants:    40,
		Location:        "Main hall",
		DurationMinutes: 90,
		PreferredSlots:  []models.PreferredSlot{{Date: "2026-10-01", Start: "09:00", End: "11:00"}},
	})
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"req-1"`)
}

func TestRequestHandlerCreateValidation(t *testing.T) {
	stub := &stubRequestService{}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(`{"topic":""}`))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "VALIDATION_ERROR")
}

func TestRequestHandlerListParsesStatuses(t *testing.T) {
	stub := &stubRequestService{request: sampleRequest()}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/requests?status=sent,pending", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, []workflow.Status{workflow.StatusSent, workflow.StatusPending}, stub.lastQuery.Status)
}

func TestRequestHandlerListRejectsUnknownStatus(t *testing.T) {
	stub := &stubRequestService{}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/requests?status=bogus", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRequestHandlerTransitionConflictSurfaces409(t *testing.T) {
	stub := &stubRequestService{err: appErrors.ErrConcurrentModification}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/requests/req-1/transition",
		strings.NewReader(`{"transition":"CANCEL"}`))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Contains(t, recorder.Body.String(), "CONCURRENT_MODIFICATION")
}

func TestRequestHandlerLetterLink(t *testing.T) {
	stub := &stubRequestService{request: sampleRequest(), letterPath: "req-1.pdf"}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/requests/req-1/letter", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "token-req-1")
}

func TestRequestHandlerDownloadLetter(t *testing.T) {
	stub := &stubRequestService{}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{data: "%PDF-test"}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/letters/download?token=token-req-1", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "application/pdf", recorder.Header().Get("Content-Type"))
	require.Equal(t, "%PDF-test", recorder.Body.String())
}

func TestRequestHandlerDownloadLetterBadToken(t *testing.T) {
	stub := &stubRequestService{}
	router := testRouter(NewRequestHandler(stub, stubSigner{}, stubOpener{}), schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/letters/download?token=forged", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
