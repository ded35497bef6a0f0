package service

import (
	"context"
	"errors"
	"fmt"
)

// ==================== 错误分类 ====================
// 分层约定：
// - 提供商级错误在链内部消化（降级/切换），不向调用方传播
// - 仅视觉策略失败与全部条目失败会作为致命错误抛给调用方
// - 持久化失败永不致命，资产降级为临时URL

// ConfigurationError 配置错误：启动时凭证缺失，对应提供商整体退出链
type ConfigurationError struct {
	Provider string
	Missing  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("提供商 %s 未配置: 缺少 %s", e.Provider, e.Missing)
}

// ValidationError 结构化输出校验错误：视觉策略环节出现即整个运行致命
type ValidationError struct {
	Stage  string
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s 结构化输出校验失败: %s", e.Stage, e.Reason)
}

// TransientError 瞬时错误：超时/限流/5xx，可触发链切换或分类重试
type TransientError struct {
	Provider string
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("提供商 %s 瞬时错误: %v", e.Provider, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// ==================== 致命错误 ====================

// ErrAllPiecesFailed 所有内容条目均失败（区分"降级"与"失败"）
var ErrAllPiecesFailed = errors.New("all content pieces failed")

// ==================== 判定工具 ====================

// IsTransient 判断错误是否为瞬时错误（含超时）
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// transientStatusCode HTTP 状态码是否属于瞬时错误
func transientStatusCode(code int) bool {
	return code == 429 || code >= 500
}
