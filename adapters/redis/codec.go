package redis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrPointerType = errors.New("pointer type is not allowed")
)

// EncodeRecord 將struct序列化為base64字串
// 帳本的ZSET成員和stream訊息的data欄位都使用這個格式
func EncodeRecord[T any](data T) (string, error) {
	if reflect.TypeOf(data).Kind() == reflect.Ptr {
		return "", ErrPointerType
	}

	bytes, err := msgpack.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("msgpack marshal error: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// DecodeRecord 將base64字串反序列化回struct
func DecodeRecord[T any](encoded string) (T, error) {
	var result T
	if reflect.TypeOf(result).Kind() == reflect.Ptr {
		return result, ErrPointerType
	}

	bytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return result, fmt.Errorf("base64 decode error: %w", err)
	}
	if err := msgpack.Unmarshal(bytes, &result); err != nil {
		return result, fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return result, nil
}

// DefaultParseToMessage 將struct封裝為stream訊息
func DefaultParseToMessage[T any](data T) (map[string]any, error) {
	encoded, err := EncodeRecord(data)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": encoded}, nil
}

// DefaultParseFromMessage 從stream訊息解出struct
func DefaultParseFromMessage[T any](message map[string]any) (T, error) {
	var result T
	if len(message) == 0 {
		return result, nil
	}

	dataStr, ok := message["data"].(string)
	if !ok {
		return result, fmt.Errorf("data field not found or invalid type")
	}
	return DecodeRecord[T](dataStr)
}
