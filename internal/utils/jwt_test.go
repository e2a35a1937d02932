package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/fair-slot/internal/errors"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", "fair-slot", time.Hour)
}

// 测试创建JWT管理器
func (suite *JWTTestSuite) TestNewJWTManager() {
	suite.Equal(time.Hour, suite.manager.GetTokenExpiry())

	// 有效期非正数时使用默认值
	manager := NewJWTManager("secret", "fair-slot", 0)
	suite.Equal(24*time.Hour, manager.GetTokenExpiry())
}

// 测试生成并验证令牌
func (suite *JWTTestSuite) TestGenerateAndValidate() {
	token, err := suite.manager.GenerateToken("player-1", "session-1", map[string]string{"brand": "demo"})
	suite.Require().NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateToken(token)
	suite.Require().NoError(err)
	suite.Equal("player-1", claims.PlayerID)
	suite.Equal("session-1", claims.SessionID)
	suite.Equal("demo", claims.Meta["brand"])
	suite.Equal("fair-slot", claims.Issuer)
	suite.Equal("player-1", claims.Subject)
}

// 测试过期令牌
func (suite *JWTTestSuite) TestExpiredToken() {
	past := time.Now().Add(-2 * time.Hour)
	suite.manager.now = func() time.Time { return past }
	token, err := suite.manager.GenerateToken("player-1", "session-1", nil)
	suite.Require().NoError(err)

	suite.manager.now = time.Now
	_, err = suite.manager.ValidateToken(token)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrTokenExpired))
}

// 测试无效令牌
func (suite *JWTTestSuite) TestInvalidTokens() {
	token, err := suite.manager.GenerateToken("player-1", "session-1", nil)
	suite.Require().NoError(err)

	otherSecret := NewJWTManager("other-secret", "fair-slot", time.Hour)
	otherIssuer := NewJWTManager("test-secret-key", "someone-else", time.Hour)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &PlayerClaims{PlayerID: "player-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	suite.Require().NoError(err)

	cases := []struct {
		name    string
		manager *JWTManager
		token   string
	}{
		{"格式错误", suite.manager, "not-a-token"},
		{"空令牌", suite.manager, ""},
		{"密钥不同", otherSecret, token},
		{"签发者不同", otherIssuer, token},
		{"none签名", suite.manager, noneToken},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := tc.manager.ValidateToken(tc.token)
			suite.Error(err)
			suite.True(errors.Is(err, errors.ErrTokenInvalid))
		})
	}
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
