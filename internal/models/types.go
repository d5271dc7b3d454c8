package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON PostgreSQL 返回 []byte，SQLite 可能返回 string
func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

// StringList 字符串数组（jsonb）
type StringList []string

// Scan 实现 sql.Scanner
func (s *StringList) Scan(value interface{}) error {
	*s = nil
	return scanJSON(value, s)
}

// Value 实现 driver.Valuer，nil 存为空数组
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

// LineItem 附加收费项
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// LineItems 有序的附加收费项（jsonb）
type LineItems []LineItem

// Scan 实现 sql.Scanner
func (l *LineItems) Scan(value interface{}) error {
	*l = nil
	return scanJSON(value, l)
}

// Value 实现 driver.Valuer
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]LineItem(l))
	return string(b), err
}

// Total 收费项合计
func (l LineItems) Total() float64 {
	var sum float64
	for _, it := range l {
		sum += it.Amount
	}
	return sum
}

// JSONMap 任意 JSON 对象（jsonb）
type JSONMap map[string]interface{}

// Scan 实现 sql.Scanner
func (j *JSONMap) Scan(value interface{}) error {
	*j = nil
	return scanJSON(value, j)
}

// Value 实现 driver.Valuer
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(j))
	return string(b), err
}
