// Package modelgateway 封装了对外部生成式模型、向量化模型与语音转写模型的
// 结构化调用，是 Ingestion / Question Generation / Interview Orchestrator
// 三条流水线共用的对外契约层。
package modelgateway

import (
	"encoding/json"
	"fmt"
)

// FieldType 是结构化输出字段允许的标量/复合类型集合。
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInt     FieldType = "integer"
	FieldNumber  FieldType = "number"
	FieldBool    FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// Field 描述结构化输出中一个必填字段的名称与标量类型。
type Field struct {
	Name string
	Type FieldType
}

// Schema 是 JSON Schema 中"必填字段 + 标量类型"这一封闭子集的具体化表示。
// 调用方按调用点定义 Schema（OCR 分批、题目批次、答案评价、结语报告），
// 校验作为 Generate 的第一等步骤运行。
type Schema struct {
	Name     string  // 用于日志与重试提示中标识该调用点
	Required []Field // 必填标量字段
	IsArray  bool    // 顶层是否为该对象的数组
}

// Validate 校验一段 JSON 是否满足 Schema：必填字段存在且类型匹配。
// 这是一个刻意保持在标准库范围内的校验器：检索到的语料库里没有任何仓库
// 引入第三方 JSON Schema 校验库，因此没有可绑定的生态依赖（DESIGN.md 有记录）。
func (s Schema) Validate(raw []byte) error {
	if s.IsArray {
		var items []map[string]interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("schema %s: expected a JSON array: %w", s.Name, err)
		}
		for i, item := range items {
			if err := s.validateObject(item); err != nil {
				return fmt.Errorf("schema %s: item %d: %w", s.Name, i, err)
			}
		}
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("schema %s: expected a JSON object: %w", s.Name, err)
	}
	return s.validateObject(obj)
}

func (s Schema) validateObject(obj map[string]interface{}) error {
	for _, f := range s.Required {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			return fmt.Errorf("missing required field %q", f.Name)
		}
		if !matchesType(v, f.Type) {
			return fmt.Errorf("field %q has wrong type, want %s", f.Name, f.Type)
		}
	}
	return nil
}

func matchesType(v interface{}, t FieldType) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldInt, FieldNumber:
		_, ok := v.(float64) // encoding/json 将所有 JSON number 解为 float64
		return ok
	case FieldBool:
		_, ok := v.(bool)
		return ok
	case FieldArray:
		_, ok := v.([]interface{})
		return ok
	case FieldObject:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}
