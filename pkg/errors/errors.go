// Package errors 提供统一错误辅助与面向用户的错误文案，不依赖 internal
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserPrefix 所有展示给用户的失败文案前缀
const UserPrefix = "Error occurred: "

// 常用哨兵错误
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidArg    = errors.New("invalid argument")
	ErrMissingSecret = errors.New("missing secret")
	ErrUnsupported   = errors.New("unsupported")
	ErrNotConfigured = errors.New("not configured")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// UserMessage 将任意错误渲染为 "Error occurred: ..." 文案；err 为 nil 时返回空串
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.HasPrefix(msg, UserPrefix) {
		return msg
	}
	return UserPrefix + msg
}

// IsUserMessage 判断字符串是否为 UserMessage 生成的失败文案
func IsUserMessage(s string) bool {
	return strings.HasPrefix(s, UserPrefix)
}
