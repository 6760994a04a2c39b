package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"veristat/internal/config"
	"veristat/internal/middleware"
	"veristat/internal/models"
	"veristat/internal/repository"
	"veristat/internal/service"
	"veristat/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "veristat-idp"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := &config.Config{
		Port:            "0",
		Env:             "test",
		IdentitySecret:  testSecret,
		IdentityIssuer:  testIssuer,
		MaxPostChars:    500,
		MaxCommentChars: 300,
		RetryAttempts:   2,
		RetryBackoffMS:  1,
	}

	db := testutil.NewTestDB(t)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	scanRepo := repository.NewScanRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	engagement := service.NewEngagementService(postRepo, commentRepo, scanRepo, statsRepo, cfg)
	reconciler := service.NewReconcileService(db, statsRepo, scanRepo)
	srv := NewServerWithDeps(cfg, db, engagement, reconciler)

	app := fiber.New()
	app.Use(middleware.ContextMiddleware())
	srv.SetupRoutes(app)
	return app
}

func authedRequest(t *testing.T, method, target, userID, role string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token := testutil.SignIdentityToken(t, testSecret, testIssuer, userID, role)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreatePostRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "", "", fiber.Map{"content": "hello"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreatePostRejectsForeignIssuer(t *testing.T) {
	app := newTestApp(t)

	token := testutil.SignIdentityToken(t, testSecret, "some-other-idp", "alice", "")
	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader([]byte(`{"content":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndFetchPost(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": "first post"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created models.Post
	decodeBody(t, resp, &created)
	assert.Equal(t, "alice", created.AuthorID)
	assert.Equal(t, "first post", created.Content)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", created.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fetched models.Post
	decodeBody(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
}

func TestCreatePostValidationStatus(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": ""})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, models.CodeValidation, body.Code)
}

func TestGetMissingPostReturns404(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/9999", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeletePostForbiddenForStranger(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": "mine"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	var created models.Post
	decodeBody(t, resp, &created)

	req = authedRequest(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", created.ID), "mallory", "", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The admin role may delete anyone's post
	req = authedRequest(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", created.ID), "moderator", middleware.RoleAdmin, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestToggleLikeEndpoint(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": "likeable"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	var created models.Post
	decodeBody(t, resp, &created)

	likeURL := fmt.Sprintf("/api/posts/%d/like", created.ID)

	req = authedRequest(t, http.MethodPost, likeURL, "bob", "", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result service.LikeResult
	decodeBody(t, resp, &result)
	assert.True(t, result.Liked)
	assert.Equal(t, int64(1), result.NewCount)

	req = authedRequest(t, http.MethodPost, likeURL, "bob", "", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	decodeBody(t, resp, &result)
	assert.False(t, result.Liked)
	assert.Equal(t, int64(0), result.NewCount)
}

func TestCommentLifecycle(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": "discuss"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	var post models.Post
	decodeBody(t, resp, &post)

	req = authedRequest(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), "bob", "", fiber.Map{"content": "nice"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var comment models.Comment
	decodeBody(t, resp, &comment)
	assert.Equal(t, "bob", comment.AuthorID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var comments []models.Comment
	decodeBody(t, resp, &comments)
	assert.Len(t, comments, 1)

	req = authedRequest(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID), "bob", "", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestSubmitScanEndpoint(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/scans", "scanner", "", fiber.Map{
		"result":     models.ScanResultFabricated,
		"media_kind": models.MediaKindVideo,
		"risk_score": 88,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var ack service.ScanAck
	decodeBody(t, resp, &ack)
	assert.True(t, ack.Recorded)

	// Invalid enum is the caller's fault
	req = authedRequest(t, http.MethodPost, "/api/scans", "scanner", "", fiber.Map{
		"result":     "maybe",
		"media_kind": models.MediaKindVideo,
	})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUserStatsEndpoint(t *testing.T) {
	app := newTestApp(t)

	// Unknown users read as zero-valued, never 404
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/users/ghost/stats", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats models.UserStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, "ghost", stats.UserID)
	assert.Zero(t, stats.PostCount)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": "counted"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/users/alice/stats", nil))
	require.NoError(t, err)
	decodeBody(t, resp, &stats)
	assert.Equal(t, int64(1), stats.PostCount)
}

func TestReconcileRoutesRequireAdmin(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/admin/reconcile", "alice", "", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = authedRequest(t, http.MethodPost, "/api/admin/reconcile", "ops", middleware.RoleAdmin, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestReconcileUserRepairsDrift(t *testing.T) {
	app := newTestApp(t)

	req := authedRequest(t, http.MethodPost, "/api/posts", "alice", "", fiber.Map{"content": "post"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	req = authedRequest(t, http.MethodPost, "/api/admin/reconcile/alice", "ops", middleware.RoleAdmin, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats models.UserStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, int64(1), stats.PostCount)
}
