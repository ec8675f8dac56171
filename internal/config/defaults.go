package config

import "time"

const defaultPort = 8080

const defaultLogLevel = "info"

var defaultAPI = API{
	BaseURL: "http://localhost:3000",
	Timeout: 10 * time.Second,
}

var defaultGateway = Gateway{
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

var defaultStorage = Storage{
	Backend:    "sqlite",
	SQLitePath: "driver.db",
	RedisAddr:  "127.0.0.1:6379",
	QueueKey:   "offline_queue",
}

var defaultWorkflow = Workflow{
	SettleDelay:      2 * time.Second,
	PingAcceptEnable: false,
	AutoConfirm:      true,
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int {
	return defaultPort
}

// DefaultAPI returns the default order service settings.
func DefaultAPI() API {
	return defaultAPI
}

// DefaultGateway returns the default gateway retry settings.
func DefaultGateway() Gateway {
	return defaultGateway
}

// DefaultStorage returns the default local storage settings.
func DefaultStorage() Storage {
	return defaultStorage
}

// DefaultWorkflow returns the default workflow settings.
func DefaultWorkflow() Workflow {
	return defaultWorkflow
}
