package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/streamwatch/player/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	apiUrl = configVar[string]{
		envKey:       "PLAYER_API_URL",
		flagKey:      "api-url",
		defaultValue: "http://localhost:8090",
	}
	wsUrl = configVar[string]{
		envKey:       "PLAYER_WS_URL",
		flagKey:      "ws-url",
		defaultValue: "ws://localhost:8090",
	}
	contentId = configVar[string]{
		envKey:       "PLAYER_CONTENT_ID",
		flagKey:      "content-id",
		defaultValue: "",
	}
	streamUrl = configVar[string]{
		envKey:       "PLAYER_STREAM_URL",
		flagKey:      "stream-url",
		defaultValue: "",
	}
	autoplay = configVar[bool]{
		envKey:       "PLAYER_AUTOPLAY",
		flagKey:      "autoplay",
		defaultValue: true,
	}
	heartbeatInterval = configVar[int]{
		envKey:       "PLAYER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 30,
	}
	logLevel = configVar[string]{
		envKey:       "PLAYER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	deviceType = configVar[string]{
		envKey:       "PLAYER_DEVICE_TYPE",
		flagKey:      "device-type",
		defaultValue: "",
	}
	screenResolution = configVar[string]{
		envKey:       "PLAYER_SCREEN_RESOLUTION",
		flagKey:      "screen-resolution",
		defaultValue: "1920x1080",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(apiUrl.flagKey, apiUrl.defaultValue, "Analytics API base url")
	pflag.String(wsUrl.flagKey, wsUrl.defaultValue, "Analytics websocket base url")
	pflag.String(contentId.flagKey, contentId.defaultValue, "Content id to play")
	pflag.String(streamUrl.flagKey, streamUrl.defaultValue, "Stream playlist url (resolved from the API if empty)")
	pflag.Bool(autoplay.flagKey, autoplay.defaultValue, "Start playback once the manifest is parsed")
	pflag.Int(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, "Heartbeat interval in seconds")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(deviceType.flagKey, deviceType.defaultValue, "Device type reported in session metadata")
	pflag.String(screenResolution.flagKey, screenResolution.defaultValue, "Screen resolution reported in session metadata")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(apiUrl.flagKey, apiUrl.envKey)
	viper.BindEnv(wsUrl.flagKey, wsUrl.envKey)
	viper.BindEnv(contentId.flagKey, contentId.envKey)
	viper.BindEnv(streamUrl.flagKey, streamUrl.envKey)
	viper.BindEnv(autoplay.flagKey, autoplay.envKey)
	viper.BindEnv(heartbeatInterval.flagKey, heartbeatInterval.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(deviceType.flagKey, deviceType.envKey)
	viper.BindEnv(screenResolution.flagKey, screenResolution.envKey)

	viper.SetDefault(apiUrl.flagKey, apiUrl.defaultValue)
	viper.SetDefault(wsUrl.flagKey, wsUrl.defaultValue)
	viper.SetDefault(contentId.flagKey, contentId.defaultValue)
	viper.SetDefault(streamUrl.flagKey, streamUrl.defaultValue)
	viper.SetDefault(autoplay.flagKey, autoplay.defaultValue)
	viper.SetDefault(heartbeatInterval.flagKey, heartbeatInterval.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(deviceType.flagKey, deviceType.defaultValue)
	viper.SetDefault(screenResolution.flagKey, screenResolution.defaultValue)

	return &app.AppConfig{
		ApiUrl:               viper.GetString(apiUrl.flagKey),
		WsUrl:                viper.GetString(wsUrl.flagKey),
		ContentId:            viper.GetString(contentId.flagKey),
		StreamUrl:            viper.GetString(streamUrl.flagKey),
		Autoplay:             viper.GetBool(autoplay.flagKey),
		HeartbeatIntervalSec: viper.GetInt(heartbeatInterval.flagKey),
		LogLevel:             viper.GetString(logLevel.flagKey),
		DeviceType:           viper.GetString(deviceType.flagKey),
		ScreenResolution:     viper.GetString(screenResolution.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting player with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
