package normalizer

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexJSON 既接受结构化 JSON，也接受数据库里以字符串存放的 JSON
type FlexJSON json.RawMessage

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexJSON) UnmarshalJSON(data []byte) error {
	*f = append((*f)[0:0], data...)
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (f FlexJSON) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return []byte("null"), nil
	}
	return f, nil
}

// Scan 实现 sql.Scanner
func (f *FlexJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = nil
	case []byte:
		*f = append((*f)[0:0], v...)
	case string:
		*f = FlexJSON(v)
	case int64:
		*f = FlexJSON(strconv.FormatInt(v, 10))
	default:
		return fmt.Errorf("FlexJSON 不支持的类型 %T", src)
	}
	return nil
}

// Value 实现 driver.Valuer
func (f FlexJSON) Value() (driver.Value, error) {
	if f.IsEmpty() {
		return nil, nil
	}
	return []byte(f), nil
}

// payload 去掉字符串包裹后的实际 JSON
func (f FlexJSON) payload() ([]byte, error) {
	data := bytes.TrimSpace(f)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		data = bytes.TrimSpace([]byte(inner))
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return nil, nil
		}
	}
	return data, nil
}

// IsEmpty 是否缺省
func (f FlexJSON) IsEmpty() bool {
	data, err := f.payload()
	return err == nil && data == nil
}

// Decode 解码到 v，缺省时返回 false
func (f FlexJSON) Decode(v interface{}) (bool, error) {
	data, err := f.payload()
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// firstByte 返回实际 JSON 的首字符
func (f FlexJSON) firstByte() byte {
	data, err := f.payload()
	if err != nil || len(data) == 0 {
		return 0
	}
	return data[0]
}
