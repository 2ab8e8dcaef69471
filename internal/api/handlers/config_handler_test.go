package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/virtualvisits/config"
	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/providers/identity"
	"github.com/yoockh/virtualvisits/internal/services"
)

func TestConfigHandler(t *testing.T) {
	cfg, err := config.Defaults()
	require.NoError(t, err)
	cfg.CommunicationServicesConnectionString = "endpoint=https://contoso.communication.azure.com/;accesskey=c2VjcmV0"

	r := gin.New()
	r.GET("/api/config", NewConfigHandler(cfg.Client()).Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "accesskey")

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, cfg.CompanyName, out["companyName"])
	require.Equal(t, "https://contoso.communication.azure.com/", out["communicationEndpoint"])
}

func TestTokenHandler(t *testing.T) {
	local := identity.NewLocalProvider("test-secret", time.Hour)
	r := gin.New()
	r.GET("/api/token", NewTokenHandler(services.NewTokenService(local, nil)).Issue)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/token?scope=voip,chat", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var tok models.UserToken
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.User.CommunicationUserID)
	require.Equal(t, 2, strings.Count(tok.Token, "."), "compact JWT")
	require.True(t, tok.ExpiresOn.After(time.Now()))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/token?scope=root", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

type memSurveys struct {
	saved []*models.SurveyResult
	err   error
}

func (m *memSurveys) Upsert(_ context.Context, s *models.SurveyResult) error {
	m.saved = append(m.saved, s)
	return m.err
}

func TestSurveyHandler(t *testing.T) {
	repo := &memSurveys{}
	r := gin.New()
	r.POST("/api/postSurveyResult", NewSurveyHandler(services.NewSurveyService(repo)).Submit)
	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/postSurveyResult", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"callId":"call1","acsUserId":"8:acs:u1","meetingLink":"https://x","response":{"rating":5},"createdAt":"2020-01-01T00:00:00Z","updatedAt":"2020-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.saved, 1)
	require.Equal(t, map[string]any{"rating": float64(5)}, repo.saved[0].Response)
	require.True(t, repo.saved[0].CreatedAt.IsZero(), "timestamps are not client settable")
	require.True(t, repo.saved[0].UpdatedAt.IsZero())

	require.Equal(t, http.StatusBadRequest, post(`{"callId":"call1"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(`[`).Code)

	repo.err = errors.New("down")
	require.Equal(t, http.StatusInternalServerError, post(`{"callId":"c","acsUserId":"u"}`).Code)
}

func TestSurveyHandlerWithoutStorage(t *testing.T) {
	r := gin.New()
	r.POST("/api/postSurveyResult", NewSurveyHandler(services.NewSurveyService(nil)).Submit)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/postSurveyResult", bytes.NewBufferString(`{"callId":"c","acsUserId":"u"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
