package annotation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchElement 注解上不存在该属性，或注解本身不存在
	ErrNoSuchElement = errors.New("no such element")
	// ErrAttributeConflict 互为镜像的属性声明了不同的值
	ErrAttributeConflict = errors.New("conflicting attribute values")
	// ErrTypeNotFound 解析器无法提供注解类型描述
	ErrTypeNotFound = errors.New("annotation type not found")
	// ErrInvalidAlias AliasFor 声明无效
	ErrInvalidAlias = errors.New("invalid alias declaration")
	// ErrRequiredAttribute 没有默认值的属性未被赋值
	ErrRequiredAttribute = errors.New("required attribute has no value")
	// ErrTypeMismatch 属性值与声明的类型不符
	ErrTypeMismatch = errors.New("attribute type mismatch")
)

func errNoSuchAttribute(typ, name string) error {
	return fmt.Errorf("%w: attribute %q on @%s", ErrNoSuchElement, name, typ)
}

func errTypeNotFound(typ string) error {
	return fmt.Errorf("%w: %s", ErrTypeNotFound, typ)
}

func errInvalidAlias(typ, attr, format string, args ...any) error {
	return fmt.Errorf("%w: @%s.%s %s", ErrInvalidAlias, typ, attr, fmt.Sprintf(format, args...))
}

func errTypeMismatch(attr string, kind AttributeKind, array bool, v any) error {
	want := kind.String()
	if array {
		want = "[]" + want
	}
	return fmt.Errorf("%w: attribute %q expects %s, got %T", ErrTypeMismatch, attr, want, v)
}
