package config

import "runtime"

// Tuning holds buffer and pool sizes for the server's infrastructure.
type Tuning struct {
	ClientSendBuffer     int `yaml:"client_send_buffer"`
	BroadcastBuffer      int `yaml:"broadcast_buffer"`
	DBMaxOpenConns       int `yaml:"db_max_open_conns"`
	DBMaxIdleConns       int `yaml:"db_max_idle_conns"`
	RedisPoolSize        int `yaml:"redis_pool_size"`
	MaxMessagesPerSecond int `yaml:"max_messages_per_second"`
}

// DefaultTuning returns sensible defaults for production.
func DefaultTuning() Tuning {
	numCPU := runtime.NumCPU()
	return Tuning{
		ClientSendBuffer:     64,
		BroadcastBuffer:      256,
		DBMaxOpenConns:       numCPU * 4,
		DBMaxIdleConns:       numCPU * 2,
		RedisPoolSize:        numCPU * 2,
		MaxMessagesPerSecond: 20,
	}
}

// LowResourceTuning returns minimal settings for development and tests.
func LowResourceTuning() Tuning {
	return Tuning{
		ClientSendBuffer:     8,
		BroadcastBuffer:      16,
		DBMaxOpenConns:       2,
		DBMaxIdleConns:       1,
		RedisPoolSize:        2,
		MaxMessagesPerSecond: 5,
	}
}
