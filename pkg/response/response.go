package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "sudooom.im.client/internal/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 错误码常量（使用 internal/errors 包的定义）
const (
	CodeSuccess       = apperrors.CodeSuccess
	CodeInvalidParams = apperrors.CodeInvalidParams
	CodeNotLoggedIn   = apperrors.CodeNotLoggedIn
	CodeNotFound      = 11004
	CodeServerError   = apperrors.CodeServerError
)

var codeMessages = map[int]string{
	CodeSuccess:       "success",
	CodeInvalidParams: "参数校验失败",
	CodeNotLoggedIn:   "未登录",
	CodeNotFound:      "会话不存在",
	CodeServerError:   "服务器内部错误",
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int) {
	message := codeMessages[code]
	if message == "" {
		message = "unknown error"
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorWithMsg 自定义错误消息
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromAppError 从 AppError 生成错误响应
// 后端不可达、超时等错误返回 502/504，便于网关区分
func ErrorFromAppError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	message := apperrors.GetMessage(err)
	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

func httpStatus(code int) int {
	switch code {
	case apperrors.CodeConnection, apperrors.CodeProtocol:
		return http.StatusBadGateway
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusOK
	}
}
