// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultMempoolSize   = 1024
	defaultMaxBlockTxs   = 64
	defaultBuildInterval = 100 * time.Millisecond
)

var validate = validator.New()

// Config is the VM configuration, supplied as JSON config bytes.
type Config struct {
	// Maximum number of proposed writes waiting to be built into a block
	MempoolSize int `json:"mempoolSize" validate:"gt=0"`
	// Maximum number of writes in a single block. Bounded so that a full
	// block of maximum length texts stays under maxCodecSize.
	MaxBlockTxs int `json:"maxBlockTxs" validate:"gt=0,lte=128"`
	// How long the builder waits after a proposal before building, so that
	// concurrent proposals share a block
	BuildInterval Duration `json:"buildInterval" validate:"gte=0"`
}

// Duration is a time.Duration that unmarshals from a JSON string like "250ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns the configuration used for empty config bytes.
func DefaultConfig() Config {
	return Config{
		MempoolSize:   defaultMempoolSize,
		MaxBlockTxs:   defaultMaxBlockTxs,
		BuildInterval: Duration(defaultBuildInterval),
	}
}

// ParseConfig overlays [configBytes] on the default configuration and
// validates the result.
func ParseConfig(configBytes []byte) (Config, error) {
	config := DefaultConfig()
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &config); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal config %s: %w", string(configBytes), err)
		}
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
