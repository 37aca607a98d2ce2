package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/duomai-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// adminIDFromHeader 读取网关注入的操作人ID，缺失时返回 0
func adminIDFromHeader(c *gin.Context) uint {
	raw := strings.TrimSpace(c.GetHeader("X-Admin-ID"))
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}
