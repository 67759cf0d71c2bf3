package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jiuwen-dev/agent-studio/db"
	"github.com/jiuwen-dev/agent-studio/internal/auth"
	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/jiuwen-dev/agent-studio/internal/router"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, auth.InitJWT())

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.Migrate(conn))

	return router.NewRouter(conn), conn
}

func seedUser(t *testing.T, conn *gorm.DB, username string, superuser bool) (models.User, string) {
	t.Helper()

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     username,
		PasswordHash: string(passwordHash),
		IsActive:     true,
		IsSuperuser:  superuser,
	}

	require.NoError(t, conn.Create(&user).Error)

	token, err := auth.GenerateJWT(user.ID, user.Username)
	require.NoError(t, err)

	return user, token
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()

	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Data)
	require.NoError(t, json.Unmarshal(resp.Data, out))
	return resp
}
