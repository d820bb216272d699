package config

import (
	"fmt"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/logging"
)

// Permission policies of the host bridge.
const (
	PermissionsGrant  = "grant"
	PermissionsDeny   = "deny"
	PermissionsPrompt = "prompt"
)

// Options is the daemon configuration. Flag names are derived by humacli
// from the field names.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camctl.toml"`

	Port         string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AuthUsername string `help:"Basic auth username, empty disables auth" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	ChannelPrefix    string `help:"Namespace of host event channels" default:"camctl.io" toml:"host.channel_prefix" env:"HOST_CHANNEL_PREFIX"`
	Permissions      string `help:"Permission policy (grant, deny, prompt)" default:"grant" toml:"host.permissions" env:"HOST_PERMISSIONS"`
	ScreenWidth      int    `help:"Screen width reported to size selection" default:"1080" toml:"host.screen_width" env:"HOST_SCREEN_WIDTH"`
	ScreenHeight     int    `help:"Screen height reported to size selection" default:"2400" toml:"host.screen_height" env:"HOST_SCREEN_HEIGHT"`
	CommandTimeoutMs int    `help:"Maximum time to wait for a command reply" default:"10000" toml:"host.command_timeout_ms" env:"HOST_COMMAND_TIMEOUT_MS"`

	CamerasFile string `help:"Simulated camera definitions" default:"cameras.toml" toml:"platform.cameras_file" env:"PLATFORM_CAMERAS_FILE"`
	FrameRate   int    `help:"Frames per second produced by repeating requests" default:"27" toml:"platform.frame_rate" env:"PLATFORM_FRAME_RATE"`

	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera   string `help:"Camera session logging level" toml:"logging.modules.camera" env:"LOGGING_CAMERA"`
	LoggingDispatch string `help:"Command dispatch logging level" toml:"logging.modules.dispatch" env:"LOGGING_DISPATCH"`
	LoggingPlatform string `help:"Platform logging level" toml:"logging.modules.platform" env:"LOGGING_PLATFORM"`
	LoggingHost     string `help:"HTTP host logging level" toml:"logging.modules.host" env:"LOGGING_HOST"`
	LoggingEvents   string `help:"Event channel logging level" toml:"logging.modules.events" env:"LOGGING_EVENTS"`
}

// Validate checks values that have a closed set or a lower bound.
func (o *Options) Validate() error {
	switch o.Permissions {
	case PermissionsGrant, PermissionsDeny, PermissionsPrompt:
	default:
		return fmt.Errorf("invalid permissions policy %q", o.Permissions)
	}
	if o.ScreenWidth <= 0 || o.ScreenHeight <= 0 {
		return fmt.Errorf("invalid screen size %dx%d", o.ScreenWidth, o.ScreenHeight)
	}
	if o.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", o.FrameRate)
	}
	if o.CommandTimeoutMs <= 0 {
		return fmt.Errorf("command timeout must be positive, got %d", o.CommandTimeoutMs)
	}
	if !logging.ValidLevel(o.LoggingLevel) {
		return fmt.Errorf("invalid logging level %q", o.LoggingLevel)
	}
	switch o.LoggingFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", o.LoggingFormat)
	}
	return nil
}

// Logging builds the logging configuration. Empty module levels inherit the global one.
func (o *Options) Logging() logging.Config {
	modules := make(map[string]string)
	for module, level := range map[string]string{
		"camera":   o.LoggingCamera,
		"dispatch": o.LoggingDispatch,
		"platform": o.LoggingPlatform,
		"host":     o.LoggingHost,
		"events":   o.LoggingEvents,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}

// Screen returns the configured screen resolution.
func (o *Options) Screen() camera.Size {
	return camera.Size{Width: o.ScreenWidth, Height: o.ScreenHeight}
}
