package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"presslite/internal/db"
	"presslite/internal/middleware"
	"presslite/internal/models"
	"presslite/internal/router"
	"presslite/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "correct horse battery staple"

func setupHandlerTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.AdminUser{}, &models.Category{}, &models.Post{}))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&models.AdminUser{
		Username:     "admin",
		FullName:     "Site Admin",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
	}).Error)

	// The user-loading middleware reads the package-level handle.
	db.DB = gdb

	r := gin.New()
	r.Use(sessions.Sessions("presslite_admin", cookie.NewStore([]byte("test-secret"))))
	r.Use(middleware.LoadUser())
	// Exposes the session token so tests can submit valid forms.
	r.GET("/csrf", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.EnsureCSRFToken(c))
	})
	router.RegisterRoutes(r, gdb, services.NewUploader(t.TempDir()))
	return r, gdb
}

// session tracks the cookie jar of one logged-in browser across requests.
type session struct {
	cookies []*http.Cookie
	csrf    string
}

func (s *session) do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if fresh := w.Result().Cookies(); len(fresh) > 0 {
		s.cookies = fresh
	}
	return w
}

func (s *session) postForm(r *gin.Engine, path string, form url.Values, ajax bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ajax {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	return s.do(r, req)
}

func login(t *testing.T, r *gin.Engine) *session {
	t.Helper()
	s := &session{}

	w := s.postForm(r, "/admin/login", url.Values{
		"username": {"admin"},
		"password": {testPassword},
	}, false)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/admin/posts", w.Header().Get("Location"))

	w = s.do(r, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	s.csrf = w.Body.String()
	require.NotEmpty(t, s.csrf)
	return s
}

func postFormValues(csrf string) url.Values {
	return url.Values{
		"csrf_token":     {csrf},
		"post_author_id": {"1"},
		"post_title":     {"Hello World"},
		"post_content":   {"<p>This is the post body with plenty of content.</p>"},
		"post_status":    {"draft"},
	}
}

func TestUnauthenticatedRequestsRedirectToLogin(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := &session{}

	w := s.do(r, httptest.NewRequest(http.MethodGet, "/admin/posts", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	// A write without a session must not touch the table either.
	w = s.postForm(r, "/admin/posts/new", postFormValues("whatever"), false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateRejectsMissingCSRFToken(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	form := postFormValues("")
	form.Del("csrf_token")
	w := s.postForm(r, "/admin/posts/new", form, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/posts/new", w.Header().Get("Location"))

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateRejectsForgedCSRFToken(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	w := s.postForm(r, "/admin/posts/new", postFormValues("forged-token"), false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/posts/new", w.Header().Get("Location"))

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreatePersistsPostAndRedirectsToEdit(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	w := s.postForm(r, "/admin/posts/new", postFormValues(s.csrf), false)

	require.Equal(t, http.StatusFound, w.Code)

	var post models.Post
	require.NoError(t, gdb.Where("slug = ?", "hello-world").First(&post).Error)
	assert.Equal(t, fmt.Sprintf("/admin/posts/%d/edit", post.ID), w.Header().Get("Location"))
	assert.Equal(t, models.StatusDraft, post.Status)
}

func TestCreateWithValidationErrorsRedirectsBack(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	form := postFormValues(s.csrf)
	form.Set("post_title", "")
	w := s.postForm(r, "/admin/posts/new", form, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/posts/new", w.Header().Get("Location"))

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestUpdateChangesStatusAndRedirectsToList(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	require.Equal(t, http.StatusFound, s.postForm(r, "/admin/posts/new", postFormValues(s.csrf), false).Code)
	var post models.Post
	require.NoError(t, gdb.Where("slug = ?", "hello-world").First(&post).Error)

	form := postFormValues(s.csrf)
	form.Set("post_status", "published")
	w := s.postForm(r, fmt.Sprintf("/admin/posts/%d/edit", post.ID), form, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/posts", w.Header().Get("Location"))

	require.NoError(t, gdb.First(&post, post.ID).Error)
	assert.Equal(t, models.StatusPublished, post.Status)
}

func TestBulkPublishUpdatesSelectedPosts(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	for _, title := range []string{"First Post", "Second Post"} {
		form := postFormValues(s.csrf)
		form.Set("post_title", title)
		require.Equal(t, http.StatusFound, s.postForm(r, "/admin/posts/new", form, false).Code)
	}

	w := s.postForm(r, "/admin/posts/bulk", url.Values{
		"csrf_token":  {s.csrf},
		"bulk_action": {"publish"},
		"post_ids[]":  {"1", "2"},
	}, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/posts", w.Header().Get("Location"))

	var count int64
	gdb.Model(&models.Post{}).Where("status = ?", models.StatusPublished).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestDeleteAjaxReturnsJSONAndRemovesRow(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	require.Equal(t, http.StatusFound, s.postForm(r, "/admin/posts/new", postFormValues(s.csrf), false).Code)
	var post models.Post
	require.NoError(t, gdb.Where("slug = ?", "hello-world").First(&post).Error)

	w := s.postForm(r, "/admin/posts/delete", url.Values{
		"csrf_token": {s.csrf},
		"post_id":    {fmt.Sprintf("%d", post.ID)},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.True(t, payload.Success)
	assert.Contains(t, payload.Message, "deleted successfully")
	assert.EqualValues(t, post.ID, payload.Data["deleted_id"])

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestDeleteAjaxMissingPostStillAnswers200(t *testing.T) {
	r, _ := setupHandlerTest(t)
	s := login(t, r)

	w := s.postForm(r, "/admin/posts/delete", url.Values{
		"csrf_token": {s.csrf},
		"post_id":    {"4242"},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.False(t, payload.Success)
	assert.Contains(t, payload.Message, "not found")
	assert.Nil(t, payload.Data)
}

func TestDeleteWithoutAjaxRedirectsWithFlash(t *testing.T) {
	r, gdb := setupHandlerTest(t)
	s := login(t, r)

	require.Equal(t, http.StatusFound, s.postForm(r, "/admin/posts/new", postFormValues(s.csrf), false).Code)
	var post models.Post
	require.NoError(t, gdb.Where("slug = ?", "hello-world").First(&post).Error)

	w := s.postForm(r, "/admin/posts/delete", url.Values{
		"csrf_token": {s.csrf},
		"post_id":    {fmt.Sprintf("%d", post.ID)},
	}, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/posts", w.Header().Get("Location"))

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestLogoutClearsSession(t *testing.T) {
	r, _ := setupHandlerTest(t)
	s := login(t, r)

	w := s.do(r, httptest.NewRequest(http.MethodGet, "/admin/logout", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	w = s.do(r, httptest.NewRequest(http.MethodGet, "/admin/posts", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))
}
