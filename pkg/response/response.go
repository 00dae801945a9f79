package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码
// 调用方只看 code 分类处理，不解析 message 文案；
// 其中只有 CodeStorageConflict 属于可重试类错误
const (
	CodeEntryNotFound       = 1001 // 流水不存在
	CodeInvalidStatus       = 1002 // 状态不允许该操作
	CodeInsufficientCredits = 1003 // 积分余额不足
	CodeDuplicateRequest    = 1004 // 重复请求
	CodeAccountNotFound     = 1005 // 账户不存在
	CodeAlreadyProcessed    = 1006 // 购买已处理，请勿重复提交
	CodeNotOwned            = 1008 // 流水不属于当前用户
	CodeUnknownMilestone    = 1009 // 未知的里程碑类型
	CodeStorageConflict     = 1010 // 并发冲突，可重试
	CodeNotAuthenticated    = 2001 // 未登录
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

// Unauthorized 未登录：鉴权失败时任何写操作都不会执行
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    CodeNotAuthenticated,
		Message: "未登录",
	})
}
