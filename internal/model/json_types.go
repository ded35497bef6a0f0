package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ==================== JSON 类型 ====================

// StringSlice 字符串切片（JSON 存储）
type StringSlice []string

func (s *StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("type assertion to []byte failed")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap JSON对象（map 存储）
type JSONMap map[string]interface{}

func (m *JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("type assertion to []byte failed")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}
