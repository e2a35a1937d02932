package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type tokenPlayers struct {
	tokens map[string]string
}

func (p *tokenPlayers) Resolve(ctx context.Context, query *adapter.PlayerQuery) (*adapter.PlayerContext, error) {
	if query.Token == "" {
		return &adapter.PlayerContext{}, nil
	}
	playerID, ok := p.tokens[query.Token]
	if !ok {
		return nil, errors.New(errors.ErrTokenInvalid)
	}
	return &adapter.PlayerContext{PlayerID: playerID, SessionID: "s-" + playerID, Meta: query.Params}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine() *gin.Engine {
	auth := NewAuthMiddleware(&tokenPlayers{tokens: map[string]string{"good": "p1"}}, "admin-secret")

	engine := gin.New()
	engine.Use(RequestID(), Recovery(zap.NewNop()), Logger(zap.NewNop()), Metrics())
	engine.GET("/me", auth.RequirePlayer(), func(c *gin.Context) {
		player, ok := GetPlayer(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"player_id": player.PlayerID, "lang": player.Meta["lang"]})
	})
	engine.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return engine
}

func TestRequirePlayer(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name   string
		url    string
		header string
		status int
		code   errors.ErrorCode
	}{
		{"Bearer令牌", "/me", "Bearer good", http.StatusOK, 0},
		{"query令牌", "/me?token=good&lang=zh", "", http.StatusOK, 0},
		{"缺少令牌", "/me", "", http.StatusUnauthorized, errors.ErrPlayerUnauthorized},
		{"无效令牌", "/me", "Bearer bad", http.StatusUnauthorized, errors.ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			if tt.status != http.StatusOK {
				var resp struct {
					Success bool `json:"success"`
					Error   struct {
						Code errors.ErrorCode `json:"code"`
					} `json:"error"`
					RequestID string `json:"request_id"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Equal(t, tt.code, resp.Error.Code)
				assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
				return
			}

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "p1", body["player_id"])
		})
	}

	t.Run("query参数进入Meta", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token=good&lang=zh", nil))
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "zh", body["lang"])
	})
}

func TestRequireAdmin(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"X-Admin-Token", "X-Admin-Token", "admin-secret", http.StatusNoContent},
		{"Bearer", "Authorization", "Bearer admin-secret", http.StatusNoContent},
		{"错误令牌", "X-Admin-Token", "nope", http.StatusForbidden},
		{"缺少令牌", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	t.Run("未配置管理员令牌时拒绝", func(t *testing.T) {
		auth := NewAuthMiddleware(&tokenPlayers{}, "")
		engine := gin.New()
		engine.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-Admin-Token", "")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("热更新令牌", func(t *testing.T) {
		auth := NewAuthMiddleware(&tokenPlayers{}, "old")
		engine := gin.New()
		engine.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		call := func(token string) int {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("X-Admin-Token", token)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusNoContent, call("old"))
		auth.SetAdminToken("new")
		assert.Equal(t, http.StatusForbidden, call("old"))
		assert.Equal(t, http.StatusNoContent, call("new"))
		auth.SetAdminToken("")
		assert.Equal(t, http.StatusForbidden, call("new"))
	})
}

func TestRecovery(t *testing.T) {
	engine := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func TestBuildPlayerQuery(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?token=abc&currency=USD", nil)

	query := BuildPlayerQuery(c)
	assert.Equal(t, "abc", query.Token)
	assert.Equal(t, map[string]string{"currency": "USD"}, query.Params)

	c.Request.Header.Set("Authorization", "bearer xyz")
	assert.Equal(t, "xyz", BuildPlayerQuery(c).Token)
}

func TestAbortWithError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := gin.New()
	engine.Use(RequestID(), Logger(zap.New(core)))
	engine.GET("/db", func(c *gin.Context) {
		AbortWithError(c, errors.New(errors.ErrDatabaseConnect))
	})
	engine.GET("/bet", func(c *gin.Context) {
		AbortWithError(c, errors.New(errors.ErrInvalidBet))
	})

	t.Run("可重试的严重错误", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/db", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))

		entries := logs.FilterMessage("请求返回严重错误").TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(errors.ErrDatabaseConnect), entries[0].ContextMap()["code"])
	})

	t.Run("普通业务错误", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bet", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, w.Header().Get("Retry-After"))
		assert.Zero(t, logs.FilterMessage("请求返回严重错误").Len())
	})
}
