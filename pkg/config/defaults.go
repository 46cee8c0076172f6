package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "hallbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Action links expire 15 minutes after issue.
	DefaultTokenTTL      = 15 * time.Minute
	DefaultActionBaseURL = "http://localhost:8080"

	// The cleanup sweep runs every minute; opportunistic triggers from
	// request handlers are throttled to at most one run per 30 seconds.
	DefaultCleanupInterval    = 60 * time.Second
	DefaultCleanupMinInterval = 30 * time.Second

	DefaultNotificationsEnabled = true
	DefaultNotificationTopic    = "booking-notifications"
	DefaultNotificationDLQTopic = "booking-notifications-dlq"

	DefaultLogLevel = "info"

	DefaultPaginationLimit = 100
)
