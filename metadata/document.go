// Package metadata 从 YAML 文档读取注解类型描述和注解元素，
// 不依赖运行期的 Go 类型即可完成注解扫描。
package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document 一个元数据文件
type Document struct {
	Types   []TypeSpec   `yaml:"types"`
	Sources []SourceSpec `yaml:"sources"`
}

// TypeSpec 注解类型描述
type TypeSpec struct {
	Name        string           `yaml:"name"`
	Inherited   bool             `yaml:"inherited"`
	Container   string           `yaml:"container"`
	Attributes  []AttributeSpec  `yaml:"attributes"`
	Annotations []AnnotationSpec `yaml:"annotations"`
}

// AttributeSpec 属性描述；省略 default 且未标记 required 时使用类型零值作为默认值
type AttributeSpec struct {
	Name     string    `yaml:"name"`
	Kind     string    `yaml:"kind"`
	Array    bool      `yaml:"array"`
	Type     string    `yaml:"type"`
	Default  yaml.Node `yaml:"default"`
	Required bool      `yaml:"required"`
	// AliasFor 形如 "attr" 或 "Type:attr"
	AliasFor string `yaml:"aliasFor"`
}

// AnnotationSpec 一个声明的注解。attributes 中的映射值表示嵌套注解，
// 需要带有 type 键。
type AnnotationSpec struct {
	Type       string    `yaml:"type"`
	Attributes yaml.Node `yaml:"attributes"`
}

// SourceSpec 被扫描的元素，引用的父类、接口、外层元素必须在某个文档中声明
type SourceSpec struct {
	Name        string           `yaml:"name"`
	Superclass  string           `yaml:"superclass"`
	Interfaces  []string         `yaml:"interfaces"`
	Enclosing   string           `yaml:"enclosing"`
	Annotations []AnnotationSpec `yaml:"annotations"`
}

// Parse 解析 YAML 文档
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &doc, nil
}

// ParseFile 读取并解析文件
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
