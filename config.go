package findorcreate

import (
	"strconv"
	"time"

	"github.com/Nemutagk/goenvars"

	"github.com/Nemutagk/findorcreate/driver/database"
	"github.com/Nemutagk/findorcreate/driver/file"
	"github.com/Nemutagk/findorcreate/models"
)

// Config is read from the environment by LoadConfig.
type Config struct {
	MongoURI         string
	Database         string
	EventsCollection string
	LogPath          string
	LogRotateDaily   bool
	LogWorkers       int
	LogQueue         int
	LogBatch         int
	LogFlush         time.Duration
	Timeout          time.Duration
}

func LoadConfig() Config {
	return Config{
		MongoURI:         goenvars.GetEnv("FINDORCREATE_MONGO_URI", "mongodb://localhost:27017"),
		Database:         goenvars.GetEnv("FINDORCREATE_DATABASE", "findOrCreate"),
		EventsCollection: goenvars.GetEnv("FINDORCREATE_EVENTS_COLLECTION", ""),
		LogPath:          goenvars.GetEnv("FINDORCREATE_LOG_PATH", ""),
		LogRotateDaily:   envBool("FINDORCREATE_LOG_ROTATE", false),
		LogWorkers:       envInt("FINDORCREATE_LOG_WORKERS", 0),
		LogQueue:         envInt("FINDORCREATE_LOG_QUEUE", 0),
		LogBatch:         envInt("FINDORCREATE_LOG_BATCH", 0),
		LogFlush:         envDuration("FINDORCREATE_LOG_FLUSH", time.Second),
		Timeout:          envDuration("FINDORCREATE_TIMEOUT", 10*time.Second),
	}
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(goenvars.GetEnv(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(goenvars.GetEnv(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(goenvars.GetEnv(key, def.String()))
	if err != nil {
		return def
	}
	return v
}

type eventConfig struct {
	drivers       []models.Driver
	batchSize     int
	batchInterval time.Duration
	workers       int
	queueSize     int
}

type EventOption func(*eventConfig)

func WithFileDriver(path string, rotateDaily bool) EventOption {
	return func(c *eventConfig) {
		c.drivers = append(c.drivers, file.NewFileDriver(path, rotateDaily))
	}
}

// WithDatabaseDriver stores events through adapter, usually a mongodb.MongoDBAdapter.
func WithDatabaseDriver(adapter database.Inserter) EventOption {
	return func(c *eventConfig) {
		c.drivers = append(c.drivers, database.NewDatabaseDriverAdapter(adapter))
	}
}

func WithDriver(d models.Driver) EventOption {
	return func(c *eventConfig) {
		c.drivers = append(c.drivers, d)
	}
}

// WithBatch groups writes of every driver by size documents or interval.
func WithBatch(size int, interval time.Duration) EventOption {
	return func(c *eventConfig) {
		c.batchSize = size
		c.batchInterval = interval
	}
}

// WithAsync hands events to a pool of workers with a bounded queue.
func WithAsync(workers, queueSize int) EventOption {
	return func(c *eventConfig) {
		c.workers = workers
		c.queueSize = queueSize
	}
}

func NewEventService(opts ...EventOption) *models.Service {
	cfg := &eventConfig{}
	for _, o := range opts {
		o(cfg)
	}

	drivers := cfg.drivers
	if cfg.batchSize > 1 {
		drivers = make([]models.Driver, 0, len(cfg.drivers))
		for _, d := range cfg.drivers {
			drivers = append(drivers, models.NewBatchDriver(d, cfg.batchSize, cfg.batchInterval))
		}
	}
	if cfg.workers > 0 {
		return models.NewAsyncService(cfg.workers, cfg.queueSize, drivers...)
	}
	return models.NewService(drivers...)
}

// EventOptions translates the logging part of c.
func (c Config) EventOptions() []EventOption {
	var opts []EventOption
	if c.LogPath != "" {
		opts = append(opts, WithFileDriver(c.LogPath, c.LogRotateDaily))
	}
	if c.LogBatch > 1 {
		opts = append(opts, WithBatch(c.LogBatch, c.LogFlush))
	}
	if c.LogWorkers > 0 {
		opts = append(opts, WithAsync(c.LogWorkers, c.LogQueue))
	}
	return opts
}
