package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/streamwatch/player/internal/simulator"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SIMULATOR_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SIMULATOR_PORT",
		flagKey:      "port",
		defaultValue: 8090,
	}
	logLevel = configVar[string]{
		envKey:       "SIMULATOR_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	store = configVar[string]{
		envKey:       "SIMULATOR_STORE",
		flagKey:      "store",
		defaultValue: "inmemory",
	}
	statsPushInterval = configVar[int]{
		envKey:       "SIMULATOR_STATS_PUSH_INTERVAL",
		flagKey:      "stats-push-interval",
		defaultValue: 5,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *simulator.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Simulator host")
	pflag.Int(port.flagKey, port.defaultValue, "Simulator port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(store.flagKey, store.defaultValue, "Session store backend (inmemory or redis)")
	pflag.Int(statsPushInterval.flagKey, statsPushInterval.defaultValue, "Stats push interval in seconds")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(store.flagKey, store.envKey)
	viper.BindEnv(statsPushInterval.flagKey, statsPushInterval.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(store.flagKey, store.defaultValue)
	viper.SetDefault(statsPushInterval.flagKey, statsPushInterval.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &simulator.AppConfig{
		Host:                 viper.GetString(host.flagKey),
		Port:                 viper.GetInt(port.flagKey),
		LogLevel:             viper.GetString(logLevel.flagKey),
		Store:                viper.GetString(store.flagKey),
		StatsPushIntervalSec: viper.GetInt(statsPushInterval.flagKey),
		RedisHost:            viper.GetString(redisHost.flagKey),
		RedisPort:            viper.GetInt(redisPort.flagKey),
		RedisPassword:        viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting simulator with config: %s\n", jsonConfig)

	log.Fatal(simulator.Run(ctx, appConfig))
}
