package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/photofeed/internal/app"
)

// envPrefix marks environment variables that configure photofeed.
// PHOTOFEED_OAUTH__CLIENT_ID sets oauth.client_id.
const envPrefix = "PHOTOFEED_"

// commandFlags configure a single command run and never reach app.Config.
var commandFlags = map[string]struct{}{
	"config": {},
	"code":   {},
	"pages":  {},
	"help":   {},
}

// defaultConfigPath is read when --config is not given and the file exists.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "photofeed", "config.toml")
}

// loadConfig layers the config file, PHOTOFEED_ variables and CLI flags, later
// sources winning, then applies defaults and validates the result.
// An explicit configPath must exist; the default one is optional.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	path := configPath
	if path == "" {
		if path = defaultConfigPath(); path != "" {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				path = ""
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(configFlags(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// configFlags maps the explicitly set config flags of cmd and its parents to
// config keys: --oauth--client-id becomes oauth.client_id.
func configFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		if _, skip := commandFlags[name]; skip || !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			values[strings.ReplaceAll(key, "-", "_")] = value
		}
	}

	return values
}
