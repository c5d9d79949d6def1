// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonmartin721/living-story-world/pkg/id"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = "storyworld.yaml"
	ConfigDirName  = "storyworld"
	EnvPrefix      = "STORYWORLD"
	KeyDelimiter   = "_"
)

var (
	viperInstance = viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))

	errConfigFileNotFound = errors.New("a configuration file has not been found in any of the search paths")
)

func RegisterRunner(r func(cmd *cobra.Command, args []string) error) {
	RootCommand.RunE = r
}

func Execute(ctx context.Context) error {
	RootCommand.AddCommand(CompletionCommand)
	return RootCommand.ExecuteContext(ctx)
}

func Init(version, commit string) {
	setVersion(version, commit)
	registerFlags()
}

// RegisterConfigFile merges the first storyworld.yaml found in the search paths. A missing file is not an
// error, flags, environment variables and defaults are enough to run.
func RegisterConfigFile() error {
	configPath, err := seekFileInPaths(ConfigFileName, getConfigFilePaths()...)
	if errors.Is(err, errConfigFileNotFound) {
		slog.Debug("No configuration file found, using flags and environment only")
		return nil
	}

	if err = loadPropertiesFromFile(configPath); err != nil {
		return err
	}

	slog.Debug("Configuration file loaded", "config_path", configPath)
	viperInstance.Set(ConfigPathKey, configPath)

	return nil
}

func ResolveConfig() (*Config, error) {
	config := &Config{
		Version:     viperInstance.GetString(VersionKey),
		Path:        viperInstance.GetString(ConfigPathKey),
		Log:         resolveLog(),
		Backend:     resolveBackend(),
		Readiness:   resolveReadiness(),
		Shutdown:    resolveShutdown(),
		Monitor:     resolveMonitor(),
		Headless:    viperInstance.GetBool(HeadlessKey),
		OpenBrowser: viperInstance.GetBool(OpenBrowserKey),
		QueueSize:   viperInstance.GetInt(QueueSizeKey),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.Log.Path = resolveLogPath(config)

	config.UUID = resolveUUID(config.Backend)

	slog.Debug("Shell config", "config", config)

	return config, nil
}

func setVersion(version, commit string) {
	RootCommand.Version = version + "-" + commit
	viperInstance.SetDefault(VersionKey, version)
}

func registerFlags() {
	viperInstance.SetEnvPrefix(EnvPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viperInstance.AutomaticEnv()

	fs := RootCommand.Flags()

	fs.String(
		LogLevelKey,
		DefLogLevel,
		"The desired verbosity level for logging messages from the shell. "+
			"Available options, in order of severity from highest to lowest, are: error, warn, info and debug.",
	)
	fs.String(
		LogPathKey,
		DefLogPath,
		"The path to output log messages to. If the path is a directory, storyworld.log is created in it. "+
			"If the path doesn't exist, log messages are output to stderr. If empty, the window logs to "+
			"storyworld.log next to the backend log and headless mode logs to stderr.",
	)
	fs.Bool(
		HeadlessKey,
		false,
		"Run the backend without a window until interrupted.",
	)
	fs.Bool(
		OpenBrowserKey,
		DefOpenBrowser,
		"Open the web interface in the default browser once the backend is ready.",
	)
	fs.Int(
		QueueSizeKey,
		DefQueueSize,
		"The size of the internal message queue between the backend monitor and the window.",
	)

	registerBackendFlags(fs)
	registerReadinessFlags(fs)
	registerShutdownFlags(fs)

	fs.Duration(
		MonitorFrequencyKey,
		DefMonitorFrequency,
		"How often the shell refreshes the backend process status.",
	)

	fs.SetNormalizeFunc(normalizeFunc)

	fs.VisitAll(func(flag *flag.Flag) {
		if err := viperInstance.BindPFlag(strings.ReplaceAll(flag.Name, "-", "_"), fs.Lookup(flag.Name)); err != nil {
			return
		}
		err := viperInstance.BindEnv(flag.Name)
		if err != nil {
			slog.Warn("Error occurred binding env", "env", flag.Name, "error", err)
		}
	})
}

func registerBackendFlags(fs *flag.FlagSet) {
	fs.String(
		BackendHostKey,
		DefBackendHost,
		"The host the backend web server listens on. Used for readiness checks and the window URL.",
	)
	fs.Int(
		BackendPortKey,
		DefBackendPort,
		"The port the backend web server listens on. Used for readiness checks and the window URL.",
	)
	fs.String(
		BackendWorkingDirKey,
		"",
		"The working directory of the backend process. Defaults to the shell's working directory.",
	)
	fs.String(
		BackendLogPathKey,
		DefBackendLogPath(),
		"The file the backend's stdout and stderr are appended to.",
	)
}

func registerReadinessFlags(fs *flag.FlagSet) {
	fs.String(
		ReadinessProbeKey,
		DefReadinessProbe,
		"How the shell decides the backend is ready: http (health endpoint), tcp (port accepts connections) "+
			"or none (fixed warm-up delay).",
	)
	fs.Duration(
		ReadinessWarmUpKey,
		DefReadinessWarmUp,
		"The fixed delay after spawning the backend when the readiness probe is none.",
	)
	fs.Duration(
		ReadinessTimeoutKey,
		DefReadinessTimeout,
		"The timeout of a single readiness probe attempt.",
	)
	fs.Duration(
		ReadinessInitialIntervalKey,
		DefReadinessInitialInterval,
		"The readiness backoff initial interval.",
	)
	fs.Duration(
		ReadinessMaxIntervalKey,
		DefReadinessMaxInterval,
		"The readiness backoff max interval.",
	)
	fs.Duration(
		ReadinessMaxElapsedTimeKey,
		DefReadinessMaxElapsedTime,
		"The total time to wait for the backend to become ready before the window is shown anyway.",
	)
	fs.Float64(
		ReadinessMultiplierKey,
		DefReadinessMultiplier,
		"The readiness backoff multiplier.",
	)
	fs.Float64(
		ReadinessRandomizationFactorKey,
		DefReadinessRandomizationFactor,
		"The readiness backoff randomization factor.",
	)
}

func registerShutdownFlags(fs *flag.FlagSet) {
	fs.Duration(
		ShutdownGracePeriodKey,
		DefShutdownGracePeriod,
		"How long to wait for the backend to exit after a termination request before it is killed.",
	)
	fs.Duration(
		ShutdownKillTimeoutKey,
		DefShutdownKillTimeout,
		"How long to wait for the backend to exit after it is killed.",
	)
}

func seekFileInPaths(fileName string, directories ...string) (string, error) {
	for _, directory := range directories {
		f := filepath.Join(directory, fileName)
		if _, err := os.Stat(f); err == nil {
			return f, nil
		}
	}

	return "", errConfigFileNotFound
}

func getConfigFilePaths() []string {
	var paths []string

	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		paths = append(paths, filepath.Join(configHome, ConfigDirName))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName))
	} else {
		slog.Warn("Unable to determine user's home directory", "error", err)
	}

	path, err := os.Getwd()
	if err == nil {
		paths = append(paths, path)
	} else {
		slog.Warn("Unable to determine process's current directory", "error", err)
	}

	return paths
}

func loadPropertiesFromFile(cfg string) error {
	viperInstance.SetConfigFile(cfg)
	viperInstance.SetConfigType("yaml")
	err := viperInstance.MergeInConfig()
	if err != nil {
		return fmt.Errorf("error loading config file %s: %w", cfg, err)
	}

	return nil
}

func normalizeFunc(f *flag.FlagSet, name string) flag.NormalizedName {
	from := []string{"_", "."}
	to := "-"
	for _, sep := range from {
		name = strings.ReplaceAll(name, sep, to)
	}

	return flag.NormalizedName(name)
}

func resolveUUID(backend *Backend) string {
	exePath, err := os.Executable()
	if err != nil {
		slog.Warn("Unable to determine executable path", "error", err)
	}

	return id.Generate("%s:%s", exePath, backend.Address())
}

func resolveLog() *Log {
	return &Log{
		Level: viperInstance.GetString(LogLevelKey),
		Path:  viperInstance.GetString(LogPathKey),
	}
}

// resolveLogPath keeps shell logs off the terminal while the window owns it: without an explicit path they
// go to storyworld.log next to the backend log.
func resolveLogPath(config *Config) string {
	if config.Log.Path != "" || config.Headless || config.Backend.LogPath == "" {
		return config.Log.Path
	}

	return filepath.Dir(config.Backend.LogPath)
}

func resolveBackend() *Backend {
	return &Backend{
		Host:       viperInstance.GetString(BackendHostKey),
		Port:       viperInstance.GetInt(BackendPortKey),
		WorkingDir: viperInstance.GetString(BackendWorkingDirKey),
		LogPath:    viperInstance.GetString(BackendLogPathKey),
	}
}

func resolveReadiness() *Readiness {
	return &Readiness{
		Probe:               strings.ToLower(viperInstance.GetString(ReadinessProbeKey)),
		WarmUp:              viperInstance.GetDuration(ReadinessWarmUpKey),
		Timeout:             viperInstance.GetDuration(ReadinessTimeoutKey),
		InitialInterval:     viperInstance.GetDuration(ReadinessInitialIntervalKey),
		MaxInterval:         viperInstance.GetDuration(ReadinessMaxIntervalKey),
		MaxElapsedTime:      viperInstance.GetDuration(ReadinessMaxElapsedTimeKey),
		Multiplier:          viperInstance.GetFloat64(ReadinessMultiplierKey),
		RandomizationFactor: viperInstance.GetFloat64(ReadinessRandomizationFactorKey),
	}
}

func resolveShutdown() *Shutdown {
	return &Shutdown{
		GracePeriod: viperInstance.GetDuration(ShutdownGracePeriodKey),
		KillTimeout: viperInstance.GetDuration(ShutdownKillTimeoutKey),
	}
}

func resolveMonitor() *Monitor {
	return &Monitor{
		Frequency: viperInstance.GetDuration(MonitorFrequencyKey),
	}
}
