package generatecontent

import (
	"time"

	"campaign-writer/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig reads the worker timeout, falling back to two minutes so that a
// multi-agent run fits inside one job activation.
func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Config{Timeout: timeout}
}
