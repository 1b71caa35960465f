package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/richnote/internal/config"
	"github.com/xxxsen/richnote/internal/entrycache"
	"github.com/xxxsen/richnote/internal/filestore"
	"github.com/xxxsen/richnote/internal/fragment"
	"github.com/xxxsen/richnote/internal/handler"
	"github.com/xxxsen/richnote/internal/middleware"
	"github.com/xxxsen/richnote/internal/pkg/jwt"
	"github.com/xxxsen/richnote/internal/repo"
	"github.com/xxxsen/richnote/internal/service"
	"github.com/xxxsen/richnote/test/testutil"
)

var jwtSecret = []byte("test-secret")

type apiResult struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	docRepo := repo.NewDocumentRepo(db)
	entryRepo := repo.NewEntryRepo(db)
	refRepo := repo.NewDocumentEntryRepo(db)

	tmpDir, err := os.MkdirTemp("", "richnote-files-*")
	require.NoError(t, err)
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{
			"dir": tmpDir,
		},
	})
	require.NoError(t, err)

	content := service.NewContentFactory(service.ContentConfig{
		SiteHandle:    "default",
		DefaultLocale: "en-US",
		EntryURLBase:  "/entries",
	}, entryRepo, entrycache.New(128, time.Minute), fragment.NewRenderer())
	documents := service.NewDocumentService(docRepo, refRepo, entryRepo, content)
	entries := service.NewEntryService(entryRepo, refRepo, content)
	duplicates := service.NewDuplicateService(docRepo, entries, content, documents)
	publisher := service.NewPublishService(documents, store, "http://files.test", 2)

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(documents, duplicates),
		Entries:    handler.NewEntryHandler(entries),
		Publish:    handler.NewPublishHandler(publisher),
		Files:      handler.NewFileHandler(store),
		Properties: handler.NewPropertiesHandler(content),
		JWTSecret:  jwtSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, func() {
		cleanup()
		_ = os.RemoveAll(tmpDir)
	}
}

// newClient signs requests for a fresh user so tests never see each other's rows.
func newClient(t *testing.T, router http.Handler) *client {
	t.Helper()
	token, err := jwt.GenerateToken(uuid.NewString(), jwtSecret, time.Hour)
	require.NoError(t, err)
	return &client{t: t, router: router, token: token}
}

func (c *client) do(method, path string, body interface{}) (*httptest.ResponseRecorder, apiResult) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp := httptest.NewRecorder()
	c.router.ServeHTTP(resp, req)
	require.Equal(c.t, http.StatusOK, resp.Code)

	var result apiResult
	if json.Valid(resp.Body.Bytes()) {
		_ = json.Unmarshal(resp.Body.Bytes(), &result)
	}
	return resp, result
}

func (c *client) ok(method, path string, body interface{}, out interface{}) {
	c.t.Helper()
	_, result := c.do(method, path, body)
	require.Equal(c.t, 0, result.Code, result.Msg)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(result.Data, out))
	}
}
