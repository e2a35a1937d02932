//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// registerSwaggerRoutes 默认构建不注册 swagger 路由
func registerSwaggerRoutes(engine *gin.Engine) {}
