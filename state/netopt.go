// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
	"github.com/we-are-mono/netopt/validation"
)

const configNamespace = "netopt"

// LoadNetoptConfig loads netopt.json from the config directory.
// If the file doesn't exist, it returns the default configuration.
// Missing sections are filled with defaults and NETOPT_DEBUG forces the
// debug log level.
func LoadNetoptConfig() (*types.NetoptConfig, error) {
	path := filepath.Join(GetConfigDir(), configNamespace+".json")

	config := DefaultNetoptConfig()
	if _, err := os.Stat(path); err == nil {
		var loaded types.NetoptConfig
		if err := LoadConfig(configNamespace, &loaded); err != nil {
			return nil, fmt.Errorf("failed to load netopt config: %w", err)
		}
		config = withDefaults(&loaded)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if debug, err := strconv.ParseBool(os.Getenv("NETOPT_DEBUG")); err == nil && debug {
		config.Logging.Level = "debug"
	}

	if err := ValidateNetoptConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveNetoptConfig writes config to netopt.json, keeping a backup of the
// previous file.
func SaveNetoptConfig(config *types.NetoptConfig) error {
	if err := ValidateNetoptConfig(config); err != nil {
		return err
	}
	return SaveConfig(configNamespace, config)
}

// ValidateNetoptConfig checks every section of config.
func ValidateNetoptConfig(config *types.NetoptConfig) error {
	v := validation.NewCollector().WithContext("netopt config")
	v.CheckStruct(validation.Validator(), config)
	if err := v.Error(); err != nil {
		return &types.ValidationError{Err: err}
	}
	return nil
}

// DefaultNetoptConfig returns the configuration used when no file exists.
func DefaultNetoptConfig() *types.NetoptConfig {
	tools := system.DefaultTools()
	return &types.NetoptConfig{
		Version: "1.0",
		Logging: &types.LoggingConfig{
			Level:    "info",
			Format:   "json",
			Outputs:  defaultOutputs(),
			File:     logger.DefaultLogFile,
			Database: logger.DefaultDatabasePath,
		},
		Privilege: &types.PrivilegeConfig{
			Escalator: system.DefaultEscalator,
		},
		Tools: &types.ToolsConfig{
			Ethtool: tools.Ethtool,
			Iw:      tools.Iw,
			Nmcli:   tools.Nmcli,
			Sysctl:  tools.Sysctl,
		},
		PowerSave: &types.PowerSaveConfig{
			Fallback: true,
		},
	}
}

// defaultOutputs prefers journald when systemd-cat is installed.
func defaultOutputs() []string {
	if _, err := system.NewDefaultCommandRunner().LookPath("systemd-cat"); err == nil {
		return []string{logger.OutputJournald}
	}
	return []string{logger.OutputFile}
}

// withDefaults fills the sections and fields loaded omitted.
func withDefaults(loaded *types.NetoptConfig) *types.NetoptConfig {
	def := DefaultNetoptConfig()
	config := *loaded

	if config.Version == "" {
		config.Version = def.Version
	}

	if config.Logging == nil {
		config.Logging = def.Logging
	} else {
		logging := *config.Logging
		if logging.Level == "" {
			logging.Level = def.Logging.Level
		}
		if logging.Format == "" {
			logging.Format = def.Logging.Format
		}
		if len(logging.Outputs) == 0 {
			logging.Outputs = def.Logging.Outputs
		}
		if logging.File == "" {
			logging.File = def.Logging.File
		}
		if logging.Database == "" {
			logging.Database = def.Logging.Database
		}
		config.Logging = &logging
	}

	if config.Privilege == nil || config.Privilege.Escalator == "" {
		config.Privilege = def.Privilege
	}

	if config.Tools == nil {
		config.Tools = def.Tools
	} else {
		tools := *config.Tools
		if tools.Ethtool == "" {
			tools.Ethtool = def.Tools.Ethtool
		}
		if tools.Iw == "" {
			tools.Iw = def.Tools.Iw
		}
		if tools.Nmcli == "" {
			tools.Nmcli = def.Tools.Nmcli
		}
		if tools.Sysctl == "" {
			tools.Sysctl = def.Tools.Sysctl
		}
		config.Tools = &tools
	}

	// fallback is on unless the section says otherwise
	if config.PowerSave == nil {
		config.PowerSave = def.PowerSave
	}
	return &config
}

// ExecutorConfig returns the executor settings for config.
func ExecutorConfig(config *types.NetoptConfig) system.ExecutorConfig {
	return system.ExecutorConfig{Escalator: config.Privilege.Escalator}
}

// Tools returns the tool names for config.
func Tools(config *types.NetoptConfig) system.Tools {
	return system.Tools{
		Ethtool: config.Tools.Ethtool,
		Iw:      config.Tools.Iw,
		Nmcli:   config.Tools.Nmcli,
		Sysctl:  config.Tools.Sysctl,
	}.WithDefaults()
}

// LoggerConfig returns the logger settings for config.
func LoggerConfig(config *types.NetoptConfig) logger.Config {
	return logger.Config{
		Level:        config.Logging.Level,
		Format:       config.Logging.Format,
		Outputs:      config.Logging.Outputs,
		FilePath:     config.Logging.File,
		DatabasePath: config.Logging.Database,
		Component:    "daemon",
	}
}
