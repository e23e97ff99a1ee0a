package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/catalog"
	"github.com/kitabu-club/kitabu/internal/database"
	booksrepo "github.com/kitabu-club/kitabu/internal/database/books"
	"github.com/kitabu-club/kitabu/internal/database/profiles"
	requestsrepo "github.com/kitabu-club/kitabu/internal/database/requests"
	"github.com/kitabu-club/kitabu/internal/entities"
	"github.com/kitabu-club/kitabu/internal/fulfillment"
	"github.com/kitabu-club/kitabu/internal/storage"
)

type requestsTestEnv struct {
	db       *database.Database
	profiles *profiles.Repository
	service  *fulfillment.Service
	router   *gin.Engine
	userID   uint
}

// asUser injects authenticated-user context the way the session middleware
// would, so controllers can be tested without a login round trip.
func asUser(user *entities.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, user.ID)
		c.Set(auth.ContextKeyUsername, user.Username)
		c.Set(auth.ContextKeyRole, user.Role)
		c.Set(auth.ContextKeyAuthType, auth.AuthTypeSession)
		c.Next()
	}
}

func setupRequestsTest(t *testing.T) (*requestsTestEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_requests_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	catalogService := catalog.NewService(booksrepo.NewRepository(db.DB), store, nil)
	profileRepo := profiles.NewRepository(db.DB)
	service := fulfillment.NewService(requestsrepo.NewRepository(db.DB), catalogService)

	user := &entities.User{Username: "asha", Email: "asha@example.com", PasswordHash: "x", Role: entities.UserRoleMember}
	require.NoError(t, db.DB.Create(user).Error)
	_, err = profileRepo.Create(&user.ID, "Asha", "+255700000001")
	require.NoError(t, err)

	controller := NewRequestsController(service, profileRepo, nil)
	router := gin.New()
	router.Use(asUser(user))
	router.GET("/api/requests", controller.CommunityRequests)
	router.POST("/api/requests", controller.Create)
	router.GET("/api/requests/mine", controller.MyRequests)
	router.GET("/api/requests/:id", controller.GetRequest)
	router.POST("/api/requests/:id/fulfill", controller.FulfillViaUpload)

	env := &requestsTestEnv{
		db:       db,
		profiles: profileRepo,
		service:  service,
		router:   router,
		userID:   user.ID,
	}
	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return env, cleanup
}

func postRequestForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func TestRequestsController_Create(t *testing.T) {
	t.Run("creates a pending request", func(t *testing.T) {
		env, cleanup := setupRequestsTest(t)
		defer cleanup()

		w := postRequestForm(env.router, "/api/requests", url.Values{
			"title":  {"Half of a Yellow Sun"},
			"author": {"Chimamanda Ngozi Adichie"},
		})

		require.Equal(t, http.StatusCreated, w.Code)

		var request map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &request))
		assert.Equal(t, "PENDING", request["status"])
		assert.Equal(t, "Half of a Yellow Sun", request["title"])
	})

	t.Run("returns 400 when title is missing", func(t *testing.T) {
		env, cleanup := setupRequestsTest(t)
		defer cleanup()

		w := postRequestForm(env.router, "/api/requests", url.Values{
			"author": {"Somebody"},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 403 when profile is deactivated", func(t *testing.T) {
		env, cleanup := setupRequestsTest(t)
		defer cleanup()

		profile, err := env.profiles.GetByUserID(env.userID)
		require.NoError(t, err)
		require.NoError(t, env.profiles.Deactivate(profile.ID))

		w := postRequestForm(env.router, "/api/requests", url.Values{
			"title": {"Anything"},
		})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRequestsController_Listings(t *testing.T) {
	env, cleanup := setupRequestsTest(t)
	defer cleanup()

	for _, title := range []string{"First", "Second"} {
		w := postRequestForm(env.router, "/api/requests", url.Values{"title": {title}})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("community list returns all requests in creation order", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/requests", nil)
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Requests []entities.BookRequest `json:"requests"`
			Count    int                    `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Equal(t, 2, response.Count)
		assert.Equal(t, "First", response.Requests[0].Title)
	})

	t.Run("my requests returns own requests newest first", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/requests/mine", nil)
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Requests []entities.BookRequest `json:"requests"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Requests, 2)
	})

	t.Run("status filter rejects unknown values", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/requests?status=BOGUS", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRequestsController_FulfillViaUpload(t *testing.T) {
	t.Run("uploads the book and resolves the request", func(t *testing.T) {
		env, cleanup := setupRequestsTest(t)
		defer cleanup()

		w := postRequestForm(env.router, "/api/requests", url.Values{
			"title":  {"Nervous Conditions"},
			"author": {"Tsitsi Dangarembga"},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		requestID := int(created["id"].(float64))

		body, contentType := uploadForm(t, map[string]string{
			"title":  "Nervous Conditions",
			"author": "Tsitsi Dangarembga",
		}, "nervous-conditions.pdf", []byte("%PDF-1.4 content"))

		w = httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/requests/"+strconv.Itoa(requestID)+"/fulfill", body)
		req.Header.Set("Content-Type", contentType)
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Request entities.BookRequest `json:"request"`
			Book    entities.Book        `json:"book"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, entities.RequestStatusFulfilled, response.Request.Status)
		require.NotNil(t, response.Request.BookID)
		assert.Equal(t, response.Book.ID, *response.Request.BookID)
		assert.NotNil(t, response.Request.FulfilledAt)
	})

	t.Run("returns 409 for an already resolved request", func(t *testing.T) {
		env, cleanup := setupRequestsTest(t)
		defer cleanup()

		w := postRequestForm(env.router, "/api/requests", url.Values{"title": {"Twice"}})
		require.Equal(t, http.StatusCreated, w.Code)

		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		requestID := int(created["id"].(float64))

		require.NoError(t, env.service.Reject(context.Background(), uint(requestID), "not available"))

		body, contentType := uploadForm(t, map[string]string{
			"title":  "Twice",
			"author": "Somebody",
		}, "twice.pdf", []byte("data"))

		w = httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/requests/"+strconv.Itoa(requestID)+"/fulfill", body)
		req.Header.Set("Content-Type", contentType)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("returns 404 for an unknown request", func(t *testing.T) {
		env, cleanup := setupRequestsTest(t)
		defer cleanup()

		body, contentType := uploadForm(t, map[string]string{
			"title":  "Ghost",
			"author": "Nobody",
		}, "ghost.pdf", []byte("data"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/requests/999/fulfill", body)
		req.Header.Set("Content-Type", contentType)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
