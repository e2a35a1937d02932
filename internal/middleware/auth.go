package middleware

import (
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/errors"
)

// 上下文键
const (
	ContextKeyPlayer = "player"
	ContextKeyQuery  = "playerQuery"
	ContextKeyAdmin  = "admin"
)

// AuthMiddleware 玩家认证中间件
type AuthMiddleware struct {
	players adapter.PlayerProvider

	mu         sync.RWMutex
	adminToken string
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(players adapter.PlayerProvider, adminToken string) *AuthMiddleware {
	return &AuthMiddleware{
		players:    players,
		adminToken: adminToken,
	}
}

// SetAdminToken 替换管理员令牌，为空时拒绝所有管理请求
func (m *AuthMiddleware) SetAdminToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminToken = token
}

func (m *AuthMiddleware) currentAdminToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adminToken
}

// RequirePlayer 解析玩家身份，失败时中止请求
func (m *AuthMiddleware) RequirePlayer() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := BuildPlayerQuery(c)
		player, err := m.players.Resolve(c.Request.Context(), query)
		if err == nil && !player.Complete() {
			err = errors.New(errors.ErrPlayerUnauthorized, "缺少认证令牌")
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(ContextKeyQuery, query)
		c.Set(ContextKeyPlayer, player)
		c.Next()
	}
}

// RequireAdmin 校验管理员令牌
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Admin-Token")
		if token == "" {
			token = extractBearer(c.GetHeader("Authorization"))
		}
		expected := m.currentAdminToken()
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			AbortWithError(c, errors.New(errors.ErrPermissionDenied, "需要管理员令牌"))
			return
		}
		c.Set(ContextKeyAdmin, true)
		c.Next()
	}
}

// BuildPlayerQuery 从请求中提取令牌和参数
func BuildPlayerQuery(c *gin.Context) *adapter.PlayerQuery {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if key == "token" || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	return &adapter.PlayerQuery{
		Token:  extractToken(c),
		Params: params,
	}
}

// extractToken 依次从Authorization Header、X-Access-Token、token参数获取
func extractToken(c *gin.Context) string {
	if token := extractBearer(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}
	return c.Query("token")
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetPlayer 从上下文获取玩家
func GetPlayer(c *gin.Context) (*adapter.PlayerContext, bool) {
	if v, exists := c.Get(ContextKeyPlayer); exists {
		if player, ok := v.(*adapter.PlayerContext); ok {
			return player, true
		}
	}
	return nil, false
}

// GetPlayerQuery 从上下文获取玩家查询
func GetPlayerQuery(c *gin.Context) *adapter.PlayerQuery {
	if v, exists := c.Get(ContextKeyQuery); exists {
		if query, ok := v.(*adapter.PlayerQuery); ok {
			return query
		}
	}
	return BuildPlayerQuery(c)
}

// AbortWithError 按错误码写入错误响应
func AbortWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	if errors.IsRetryable(appErr) {
		c.Header("Retry-After", retryAfterSeconds)
	}
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, c.GetString(ContextKeyRequestID)))
}

const retryAfterSeconds = "1"
