package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	keyAccessToken   = "linkedin_access_token"
	keyPersonID      = "linkedin_person_id"
	keyServerAddress = "server_address"
	keyDebugMode     = "debug_mode"
	keyLogLevel      = "log_level"
	keyTransport     = "transport"

	transportSSE   = "sse"
	transportStdio = "stdio"

	defaultServerAddress = "0.0.0.0:3000"
)

// Config はサーバー全体の設定
type Config struct {
	LinkedIn      LinkedInConfig
	ServerAddress string
	Transport     string
	LogLevel      string
}

// newViper は環境変数を読む設定済みのviperを返す
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(keyServerAddress, defaultServerAddress)
	v.SetDefault(keyDebugMode, false)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyTransport, transportSSE)
	v.AutomaticEnv()
	return v
}

// bindFlags はコマンドラインフラグを定義し、viperのキーに結び付ける
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	flags.String("transport", transportSSE, "transport to serve on (sse or stdio)")
	flags.String("address", defaultServerAddress, "listen address for the sse transport")
	flags.Bool("debug", false, "simulate posts instead of calling the LinkedIn API (DEBUG_MODE=true)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	bindings := map[string]string{
		keyTransport:     "transport",
		keyServerAddress: "address",
		keyDebugMode:     "debug",
		keyLogLevel:      "log-level",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// loadDotEnv は.envファイルがあれば読み込む。環境変数の方が優先される
func loadDotEnv(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// parseDebugMode は大文字小文字を区別せず"true"のときだけ有効にする。"1"や"t"は無効
func parseDebugMode(value string) bool {
	return strings.EqualFold(value, "true")
}

// LoadConfig はviperから設定を組み立てて検証する
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		LinkedIn: LinkedInConfig{
			AccessToken: v.GetString(keyAccessToken),
			PersonID:    v.GetString(keyPersonID),
			DebugMode:   parseDebugMode(v.GetString(keyDebugMode)),
		},
		ServerAddress: v.GetString(keyServerAddress),
		Transport:     v.GetString(keyTransport),
		LogLevel:      v.GetString(keyLogLevel),
	}

	var result *multierror.Error
	if cfg.LinkedIn.AccessToken == "" {
		result = multierror.Append(result, errors.New("LINKEDIN_ACCESS_TOKEN environment variable not set"))
	}
	if cfg.LinkedIn.PersonID == "" {
		result = multierror.Append(result, errors.New("LINKEDIN_PERSON_ID environment variable not set"))
	}
	switch cfg.Transport {
	case transportSSE:
		if cfg.ServerAddress == "" {
			result = multierror.Append(result, errors.New("SERVER_ADDRESS must not be empty for the sse transport"))
		}
	case transportStdio:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown transport %q (want %s or %s)", cfg.Transport, transportSSE, transportStdio))
	}

	return cfg, result.ErrorOrNil()
}
