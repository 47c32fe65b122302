package main

import (
	"fmt"
	"os"

	"github.com/Shilder25/opinion-arena/internal/cli"
	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/logging"
)

func main() {
	cfg, err := config.Load(configDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.System.LogLevel
	if cfg.System.LogFile != "" {
		logCfg.FilePath = cfg.System.LogFile
	}
	logger := logging.NewLoggerWithConfig(logCfg)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// configDir resolves the --config flag before cobra parses anything,
// since configuration must exist before commands are constructed.
func configDir() string {
	args := os.Args[1:]
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return os.Getenv("ARENA_CONFIG_DIR")
}
