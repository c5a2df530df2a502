// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/messagevm/messagevm"
)

const (
	envPrefix = "messagevm"

	versionKey       = "version"
	httpHostKey      = "http-host"
	httpPortKey      = "http-port"
	logLevelKey      = "log-level"
	genesisFileKey   = "genesis-file"
	genesisTextKey   = "genesis-text"
	genesisAuthorKey = "genesis-author"
	configFileKey    = "config-file"
	envFileKey       = "env-file"
	dbDirKey         = "db-dir"
	mempoolSizeKey   = "mempool-size"
	maxBlockTxsKey   = "max-block-txs"
	buildIntervalKey = "build-interval"
)

// Config is the configuration of the messagevm binary
type Config struct {
	PrintVersion bool
	HTTPAddr     string
	LogLevel     log.Lvl
	DBDir        string
	GenesisBytes []byte
	ConfigBytes  []byte
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(messagevm.Name, flag.ContinueOnError)

	defaults := messagevm.DefaultConfig()

	fs.Bool(versionKey, false, "If true, prints version and quit")
	fs.String(httpHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(httpPortKey, 9650, "Port of the HTTP server")
	fs.String(logLevelKey, "info", "The log level. Should be one of {crit, error, warn, info, debug}")
	fs.String(genesisFileKey, "", "Path to a JSON genesis file. Overrides the genesis-text and genesis-author flags")
	fs.String(genesisTextKey, "Hello Monad!", "Initial message")
	fs.String(genesisAuthorKey, ids.ShortEmpty.String(), "Creator of the initial message")
	fs.String(configFileKey, "", "Path to a JSON VM config file. Overrides the mempool and block flags")
	fs.String(envFileKey, ".env", "Path to an env file of MESSAGEVM_* overrides. Ignored if missing")
	fs.String(dbDirKey, "", "Directory of the leveldb database. If empty, state is kept in memory")
	fs.Int(mempoolSizeKey, defaults.MempoolSize, "Maximum number of proposed writes waiting for a block")
	fs.Int(maxBlockTxsKey, defaults.MaxBlockTxs, "Maximum number of writes in a block")
	fs.Duration(buildIntervalKey, time.Duration(defaults.BuildInterval), "How long to wait after a proposal before building a block")

	return fs
}

// getViper returns the viper environment for the binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := loadEnvFile(v.GetString(envFileKey)); err != nil {
		return nil, err
	}
	return v, nil
}

// loadEnvFile adds the variables in [path] to the environment.
// Variables that are already set are left as is.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("couldn't load env file %s: %w", path, err)
	}
	return nil
}

// BuildConfig parses flags, the env file and the environment
func BuildConfig() (Config, error) {
	v, err := getViper()
	if err != nil {
		return Config{}, err
	}
	return buildConfig(v)
}

func buildConfig(v *viper.Viper) (Config, error) {
	config := Config{
		PrintVersion: v.GetBool(versionKey),
		HTTPAddr:     net.JoinHostPort(v.GetString(httpHostKey), strconv.FormatUint(uint64(v.GetUint(httpPortKey)), 10)),
	}
	if config.PrintVersion {
		return config, nil
	}

	logLevel, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return Config{}, err
	}
	config.LogLevel = logLevel
	config.DBDir = v.GetString(dbDirKey)

	config.GenesisBytes, err = genesisBytes(v)
	if err != nil {
		return Config{}, err
	}
	config.ConfigBytes, err = vmConfigBytes(v)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

func genesisBytes(v *viper.Viper) ([]byte, error) {
	if genesisFile := v.GetString(genesisFileKey); genesisFile != "" {
		bytes, err := os.ReadFile(genesisFile)
		if err != nil {
			return nil, fmt.Errorf("couldn't read genesis file: %w", err)
		}
		return bytes, nil
	}

	author, err := ids.ShortFromString(v.GetString(genesisAuthorKey))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", genesisAuthorKey, err)
	}
	genesis := &messagevm.Genesis{
		Text:   v.GetString(genesisTextKey),
		Author: author,
	}
	return genesis.Bytes()
}

func vmConfigBytes(v *viper.Viper) ([]byte, error) {
	if configFile := v.GetString(configFileKey); configFile != "" {
		bytes, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("couldn't read config file: %w", err)
		}
		return bytes, nil
	}

	return json.Marshal(messagevm.Config{
		MempoolSize:   v.GetInt(mempoolSizeKey),
		MaxBlockTxs:   v.GetInt(maxBlockTxsKey),
		BuildInterval: messagevm.Duration(v.GetDuration(buildIntervalKey)),
	})
}
