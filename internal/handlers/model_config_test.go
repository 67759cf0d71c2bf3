package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jiuwen-dev/agent-studio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelConfigPayload struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	ModelType string `json:"model_type"`
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	IsActive  bool   `json:"is_active"`
	IsDefault bool   `json:"is_default"`
}

func TestCreateModelConfigMasksAPIKey(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name":       "OpenAI GPT-4",
		"provider":   "openai",
		"model_type": "gpt-4",
		"api_key":    "sk-real-key-123456",
		"config":     map[string]any{"temperature": 0.7},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.NotContains(t, w.Body.String(), "sk-real-key-123456")

	var created modelConfigPayload
	decodeData(t, w, &created)
	assert.Equal(t, "sk-...", created.APIKey)

	// Stored value keeps the real key.
	var stored models.ModelConfig
	require.NoError(t, conn.First(&stored, created.ID).Error)
	assert.Equal(t, "sk-real-key-123456", stored.APIKey)

	// Reads mask it too.
	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/models/%d", created.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-real-key-123456")
}

func TestModelConfigEmptyAPIKeyStaysEmpty(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name":       "Local",
		"provider":   "local",
		"model_type": "llama",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created modelConfigPayload
	decodeData(t, w, &created)
	assert.Empty(t, created.APIKey)
}

func TestModelConfigSingleDefaultPerOwner(t *testing.T) {
	r, conn := newTestServer(t)
	user, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name":       "Config A",
		"provider":   "openai",
		"model_type": "gpt-4",
		"is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var configA modelConfigPayload
	decodeData(t, w, &configA)
	assert.True(t, configA.IsDefault)

	w = doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name":       "Config B",
		"provider":   "deepseek",
		"model_type": "deepseek-chat",
		"is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var configB modelConfigPayload
	decodeData(t, w, &configB)
	assert.True(t, configB.IsDefault)

	var storedA, storedB models.ModelConfig
	require.NoError(t, conn.First(&storedA, configA.ID).Error)
	require.NoError(t, conn.First(&storedB, configB.ID).Error)
	assert.False(t, storedA.IsDefault)
	assert.True(t, storedB.IsDefault)

	var defaults int64
	require.NoError(t, conn.Model(&models.ModelConfig{}).
		Where("created_by = ? AND is_default = ?", user.ID, true).
		Count(&defaults).Error)
	assert.Equal(t, int64(1), defaults)
}

func TestModelConfigDefaultViaUpdate(t *testing.T) {
	r, conn := newTestServer(t)
	user, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Config A", "provider": "openai", "model_type": "gpt-4", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var configA modelConfigPayload
	decodeData(t, w, &configA)

	w = doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Config B", "provider": "qwen", "model_type": "qwen-plus",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var configB modelConfigPayload
	decodeData(t, w, &configB)

	w = doRequest(t, r, http.MethodPut, fmt.Sprintf("/api/models/%d", configB.ID), token, map[string]any{
		"is_default": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var defaults []models.ModelConfig
	require.NoError(t, conn.Where("created_by = ? AND is_default = ?", user.ID, true).
		Find(&defaults).Error)
	require.Len(t, defaults, 1)
	assert.Equal(t, configB.ID, defaults[0].ID)
}

func TestModelConfigDefaultsIndependentPerOwner(t *testing.T) {
	r, conn := newTestServer(t)
	_, aliceToken := seedUser(t, conn, "alice", false)
	_, bobToken := seedUser(t, conn, "bob", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", aliceToken, map[string]any{
		"name": "Alice Default", "provider": "openai", "model_type": "gpt-4", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/models", bobToken, map[string]any{
		"name": "Bob Default", "provider": "openai", "model_type": "gpt-4", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var defaults int64
	require.NoError(t, conn.Model(&models.ModelConfig{}).
		Where("is_default = ?", true).Count(&defaults).Error)
	assert.Equal(t, int64(2), defaults)
}

func TestModelConfigNameConflict(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Shared Name", "provider": "openai", "model_type": "gpt-4",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Shared Name", "provider": "qwen", "model_type": "qwen-plus",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Error, "already exists")

	// Another owner may reuse the name.
	_, bobToken := seedUser(t, conn, "bob", false)

	w = doRequest(t, r, http.MethodPost, "/api/models", bobToken, map[string]any{
		"name": "Shared Name", "provider": "openai", "model_type": "gpt-4",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestModelConfigPartialUpdate(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name":       "Config A",
		"provider":   "openai",
		"model_type": "gpt-4",
		"api_key":    "sk-original",
		"base_url":   "https://api.openai.com/v1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created modelConfigPayload
	decodeData(t, w, &created)

	w = doRequest(t, r, http.MethodPut, fmt.Sprintf("/api/models/%d", created.ID), token, map[string]any{
		"base_url": "https://proxy.internal/v1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var stored models.ModelConfig
	require.NoError(t, conn.First(&stored, created.ID).Error)
	assert.Equal(t, "https://proxy.internal/v1", stored.BaseURL)
	assert.Equal(t, "Config A", stored.Name)
	assert.Equal(t, "openai", stored.Provider)
	assert.Equal(t, "gpt-4", stored.ModelType)
	assert.Equal(t, "sk-original", stored.APIKey)
	assert.True(t, stored.IsActive)

	// Present-but-empty applies.
	w = doRequest(t, r, http.MethodPut, fmt.Sprintf("/api/models/%d", created.ID), token, map[string]any{
		"base_url": "",
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.First(&stored, created.ID).Error)
	assert.Empty(t, stored.BaseURL)
}

func TestModelConfigOwnershipScoping(t *testing.T) {
	r, conn := newTestServer(t)
	_, aliceToken := seedUser(t, conn, "alice", false)
	_, bobToken := seedUser(t, conn, "bob", false)
	_, adminToken := seedUser(t, conn, "admin", true)

	w := doRequest(t, r, http.MethodPost, "/api/models", aliceToken, map[string]any{
		"name": "Alice Config", "provider": "openai", "model_type": "gpt-4",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created modelConfigPayload
	decodeData(t, w, &created)

	path := fmt.Sprintf("/api/models/%d", created.ID)

	w = doRequest(t, r, http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModelConfigListFilters(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	for i, provider := range []string{"openai", "openai", "qwen"} {
		w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
			"name":       fmt.Sprintf("Config %d", i),
			"provider":   provider,
			"model_type": "m",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(t, r, http.MethodGet, "/api/models?provider=openai", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items []modelConfigPayload `json:"items"`
		Total int64                `json:"total"`
	}
	decodeData(t, w, &page)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		assert.Equal(t, "openai", item.Provider)
	}
}

func TestTestModelConfig(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Active", "provider": "openai", "model_type": "gpt-4",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var active modelConfigPayload
	decodeData(t, w, &active)

	w = doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/models/%d/test", active.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		TestID     string `json:"test_id"`
		TestResult string `json:"test_result"`
	}
	decodeData(t, w, &result)
	assert.NotEmpty(t, result.TestID)
	assert.Equal(t, "Connection successful", result.TestResult)

	w = doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Inactive", "provider": "openai", "model_type": "gpt-4", "is_active": false,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var inactive modelConfigPayload
	decodeData(t, w, &inactive)

	w = doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/models/%d/test", inactive.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(decodeEnvelope(t, w).Error, "inactive"))

	w = doRequest(t, r, http.MethodPost, "/api/models/9999/test", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteModelConfig(t *testing.T) {
	r, conn := newTestServer(t)
	_, token := seedUser(t, conn, "alice", false)

	w := doRequest(t, r, http.MethodPost, "/api/models", token, map[string]any{
		"name": "Doomed", "provider": "openai", "model_type": "gpt-4",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created modelConfigPayload
	decodeData(t, w, &created)

	path := fmt.Sprintf("/api/models/%d", created.ID)

	w = doRequest(t, r, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var count int64
	require.NoError(t, conn.Unscoped().Model(&models.ModelConfig{}).
		Where("id = ?", created.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
