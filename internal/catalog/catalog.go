// internal/catalog/catalog.go
package catalog

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// 结构参数名
const (
	ParamGenre        = "genre"
	ParamTone         = "tone"
	ParamLength       = "length"
	ParamLanguage     = "language"
	ParamInstructions = "instructions"
)

// Catalog 可选的枚举参数
type Catalog struct {
	Genres    []string `yaml:"genres" json:"genres"`
	Tones     []string `yaml:"tones" json:"tones"`
	Lengths   []string `yaml:"lengths" json:"lengths"`
	Languages []string `yaml:"languages" json:"languages"`
}

// Default 加载内置目录
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("内置目录无效: %v", err))
	}
	return c
}

// Parse 解析 YAML 目录
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析目录失败: %w", err)
	}
	if len(c.Genres) == 0 || len(c.Tones) == 0 || len(c.Lengths) == 0 || len(c.Languages) == 0 {
		return nil, fmt.Errorf("目录缺少选项")
	}
	return &c, nil
}

// options 返回参数对应的选项列表
func (c *Catalog) options(param string) []string {
	switch param {
	case ParamGenre:
		return c.Genres
	case ParamTone:
		return c.Tones
	case ParamLength:
		return c.Lengths
	case ParamLanguage:
		return c.Languages
	}
	return nil
}

// Normalize 校验取值并返回目录中的规范写法（大小写不敏感）
func (c *Catalog) Normalize(param, value string) (string, error) {
	options := c.options(param)
	if options == nil {
		return "", apperrors.NewValidationError(fmt.Sprintf("未知参数: %s", param), nil)
	}
	value = strings.TrimSpace(value)
	idx := slices.IndexFunc(options, func(o string) bool {
		return strings.EqualFold(o, value)
	})
	if idx < 0 {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("%s 取值无效: %q（可选: %s）", param, value, strings.Join(options, ", ")), nil)
	}
	return options[idx], nil
}

// NormalizeOrDefault 空值时使用默认值（列表第一项）
func (c *Catalog) NormalizeOrDefault(param, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		if options := c.options(param); len(options) > 0 {
			return options[0], nil
		}
	}
	return c.Normalize(param, value)
}
