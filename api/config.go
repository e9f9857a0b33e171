package api

import (
	"crypto/ed25519"
	"time"
)

type ServerConfig struct {
	// ID 是節點識別，用於 consumer group 中區分不同的服務實例
	ID string

	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix 是所有暫存鍵的前綴，方便多環境共用同一個 Redis
	KeyPrefix string
	// ExpireTime 是 per-auction 暫存鍵的保險 TTL
	ExpireTime time.Duration

	ConsumerGroup string
	StreamKeys    RedisStreamKeys
}

type RedisStreamKeys struct {
	// Bids 承載受理成功的出價，各節點廣播用
	Bids string
	// Events 承載房間事件信封，各節點廣播用
	Events string
	// OrderVoid 承載訂單作廢通知，consumer group 消費
	OrderVoid string
}

type AuthConfig struct {
	PrivateKey     ed25519.PrivateKey
	Issuer         string
	Audience       string
	ExpireDuration time.Duration
}
