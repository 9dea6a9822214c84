package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig 可通过 errors.Is 判断任意校验失败，具体字段见 FieldError。
var ErrInvalidConfig = errors.New("invalid config")

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e FieldError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// workerField 拼接 Worker 表内的字段路径，例如 Worker.Origin。
func workerField(field string) string {
	return "Worker." + field
}
