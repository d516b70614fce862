package database

import (
	"sync"
	"time"
)

// databasePool caches the database instance across warm serverless
// invocations. The store itself is the only synchronization point for
// workflow state; this caches nothing but the connection.
type databasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	lastUsed time.Time
}

var (
	globalPool *databasePool
	poolMutex  sync.Mutex
)

// GetDatabase returns the process-cached database, creating or recreating
// it when the configuration changed since the last invocation.
func GetDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && globalPool.config == config {
		globalPool.lastUsed = time.Now()
		return globalPool.instance, nil
	}

	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
	}

	instance, err := NewDatabase(config)
	if err != nil {
		return nil, err
	}
	globalPool = &databasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// ResetPool closes and forgets the cached connection. Used by tests and
// graceful shutdown paths.
func ResetPool() {
	poolMutex.Lock()
	defer poolMutex.Unlock()
	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
	}
	globalPool = nil
}
