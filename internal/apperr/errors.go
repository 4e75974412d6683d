// Package apperr 定义了跨核心组件复用的错误类型与 HTTP 状态映射。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 是一个封闭的错误分类枚举，对应 §7 中列出的错误种类。
type Kind int

const (
	KindInvalidRequest Kind = iota
	KindNotFound
	KindPrecondition
	KindConflict
	KindModelTransient
	KindModelSchema
	KindStorage
	KindCancelled
	KindInternal
)

// Error 是核心组件返回的带分类错误。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// InvalidRequest 表示 400：缺失字段或类型不合法。
func InvalidRequest(msg string) *Error { return newErr(KindInvalidRequest, msg, nil) }

// NotFound 表示 404：记录/会话不存在。
func NotFound(msg string) *Error { return newErr(KindNotFound, msg, nil) }

// Precondition 表示 409：记录未 READY 等前置条件未满足。
func Precondition(msg string) *Error { return newErr(KindPrecondition, msg, nil) }

// Conflict 表示 409：同一 thread_id 上有进行中的轮次。
func Conflict(msg string) *Error { return newErr(KindConflict, msg, nil) }

// ModelTransient 包装可重试的模型调用传输错误。
func ModelTransient(msg string, err error) *Error { return newErr(KindModelTransient, msg, err) }

// ModelSchema 表示重试耗尽后结构化输出仍不合法。
func ModelSchema(msg string, err error) *Error { return newErr(KindModelSchema, msg, err) }

// Storage 包装关系型/对象存储 I/O 错误。
func Storage(msg string, err error) *Error { return newErr(KindStorage, msg, err) }

// Cancelled 表示协作式取消。
func Cancelled(msg string) *Error { return newErr(KindCancelled, msg, nil) }

// Internal 包装其余未分类的内部错误。
func Internal(msg string, err error) *Error { return newErr(KindInternal, msg, err) }

// HTTPStatus 将错误种类映射到固定状态码（§6）。
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindInvalidRequest:
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindPrecondition, KindConflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// RecordNotReady 是 4.5 节前置条件失败的具名错误，供上层用 errors.Is 判断。
var RecordNotReady = Precondition("record is not READY")

// SessionNotFound 是 4.6 节按 thread_id 查找 Checkpoint 失败时返回的具名错误。
var SessionNotFound = NotFound("interview session not found")
