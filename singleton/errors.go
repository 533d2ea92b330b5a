package singleton

import (
	"errors"
	"fmt"
	"strings"
)

// 错误种类，使用 errors.Is 判断
var (
	// ErrAlreadyRegistered 同名 bean 已绑定对象
	ErrAlreadyRegistered = errors.New("singleton: already registered")
	// ErrCurrentlyInCreation 检测到无法通过早期引用解决的循环创建
	ErrCurrentlyInCreation = errors.New("singleton: currently in creation")
	// ErrCreationNotAllowed 注册表正在销毁时请求创建
	ErrCreationNotAllowed = errors.New("singleton: creation not allowed")
	// ErrIllegalState 创建调用约定被破坏
	ErrIllegalState = errors.New("singleton: illegal state")
	// ErrCreationFailed 工厂返回错误且附带了被抑制的嵌套错误
	ErrCreationFailed = errors.New("singleton: creation failed")
)

// BeanError 携带 bean 名称和相关原因的错误
type BeanError struct {
	Bean    string
	Kind    error
	Message string
	Cause   error
	// Related 创建期间被抑制的嵌套错误，仅用于诊断
	Related []error
}

func (e *BeanError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Bean != "" {
		fmt.Fprintf(&b, ": bean %q", e.Bean)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if len(e.Related) > 0 {
		fmt.Fprintf(&b, " (%d related cause(s)", len(e.Related))
		for _, r := range e.Related {
			b.WriteString("; ")
			b.WriteString(r.Error())
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap 同时暴露种类和原因，Related 不参与匹配
func (e *BeanError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// AddRelatedCause 追加一个相关原因
func (e *BeanError) AddRelatedCause(err error) {
	e.Related = append(e.Related, err)
}

func newBeanError(kind error, bean, msg string) *BeanError {
	return &BeanError{Bean: bean, Kind: kind, Message: msg}
}

func errAlreadyRegistered(bean string, existing any) *BeanError {
	return newBeanError(ErrAlreadyRegistered, bean,
		fmt.Sprintf("could not register object: there is already object [%v] bound", existing))
}

func errCurrentlyInCreation(bean string) *BeanError {
	return newBeanError(ErrCurrentlyInCreation, bean,
		"requested bean is currently in creation: is there an unresolvable circular reference?")
}

func errCreationNotAllowed(bean string) *BeanError {
	return newBeanError(ErrCreationNotAllowed, bean,
		"singleton creation not allowed while singletons of this registry are in destruction "+
			"(do not request a bean from the registry in a destroy method implementation)")
}

func errIllegalState(bean, msg string) *BeanError {
	return newBeanError(ErrIllegalState, bean, msg)
}

// IsCurrentlyInCreation 判断是否为循环创建错误
func IsCurrentlyInCreation(err error) bool {
	return errors.Is(err, ErrCurrentlyInCreation)
}

// IsAlreadyRegistered 判断是否为重复注册错误
func IsAlreadyRegistered(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered)
}

// RelatedCauses 返回错误链上第一个 BeanError 的相关原因
func RelatedCauses(err error) []error {
	var be *BeanError
	if errors.As(err, &be) {
		return be.Related
	}
	return nil
}
