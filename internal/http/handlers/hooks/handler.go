// Package hooks 接收订单系统的内部事件回调，驱动分佣与钱包流转。
package hooks

import (
	handlershared "github.com/duomai-next/internal/http/handlers/shared"
	"github.com/duomai-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 订单事件回调处理器
type Handler struct {
	*provider.Container
}

// New 创建订单事件回调处理器
func New(container *provider.Container) *Handler {
	return &Handler{Container: container}
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}
