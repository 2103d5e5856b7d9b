package linkcache

import (
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultMaxChunkSize bounds one upstream link sub-request, measured in
// serialized identifier bytes.
const DefaultMaxChunkSize = 4000

// Config configures a cache instance.
type Config struct {
	// Path is the data directory of the persistent store.
	Path string
	// MinimumFreeGB is a free-space threshold checked at open. 0 disables it.
	MinimumFreeGB int
	// MaxChunkSize bounds one upstream link sub-request in serialized
	// identifier bytes. Defaults to DefaultMaxChunkSize.
	MaxChunkSize int
	// DisableNegativeCaching turns off the "queried upstream, confirmed
	// absent" markers for point lookups, so absent keys are re-queried.
	DisableNegativeCaching bool
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *logrus.Logger
}

func defaultLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	return log
}

func (conf *Config) applyDefaults() {
	if conf.MaxChunkSize <= 0 {
		conf.MaxChunkSize = DefaultMaxChunkSize
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
}
