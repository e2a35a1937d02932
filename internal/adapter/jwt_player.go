package adapter

import (
	"context"

	"github.com/wfunc/fair-slot/internal/utils"
)

// TokenValidator 令牌校验
type TokenValidator interface {
	ValidateToken(token string) (*utils.PlayerClaims, error)
}

// JWTPlayerProvider 从JWT解析玩家身份
type JWTPlayerProvider struct {
	validator TokenValidator
}

// NewJWTPlayerProvider 创建JWT玩家解析器
func NewJWTPlayerProvider(validator TokenValidator) *JWTPlayerProvider {
	return &JWTPlayerProvider{validator: validator}
}

// Resolve 解析玩家，没有令牌时返回空身份，由调用方判定未授权
func (p *JWTPlayerProvider) Resolve(ctx context.Context, query *PlayerQuery) (*PlayerContext, error) {
	if query == nil || query.Token == "" {
		return &PlayerContext{}, nil
	}

	claims, err := p.validator.ValidateToken(query.Token)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string, len(claims.Meta)+len(query.Params))
	for k, v := range claims.Meta {
		meta[k] = v
	}
	for k, v := range query.Params {
		meta[k] = v
	}

	return &PlayerContext{
		PlayerID:  claims.PlayerID,
		SessionID: claims.SessionID,
		Meta:      meta,
	}, nil
}
