package models

import (
	"database/sql/driver"
	"encoding/json"
)

// StringList хранит упорядоченный список строк в текстовой колонке как JSON.
// Битые данные при чтении превращаются в пустой список, а не в ошибку.
type StringList []string

// Value сериализует список в JSON для записи в БД
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan читает JSON из колонки; при ошибке декодирования возвращает пустой список
func (l *StringList) Scan(value interface{}) error {
	*l = StringList{}
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	*l = items
	return nil
}

// IDList хранит упорядоченный список идентификаторов в текстовой колонке как JSON
type IDList []uint

// Value сериализует список в JSON для записи в БД
func (l IDList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]uint(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan читает JSON из колонки; при ошибке декодирования возвращает пустой список
func (l *IDList) Scan(value interface{}) error {
	*l = IDList{}
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil
	}

	var items []uint
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	*l = items
	return nil
}
