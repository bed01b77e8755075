package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/config"
	"github.com/matsen/publications/internal/style"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values.

Usage:
  pubs config                        # Show all config
  pubs config style                  # Get specific value
  pubs config server.addr :9000      # Set value

Keys:
  style                 Default citation style for list --human
  legacy                Report stored duplicates as a single entry (true/false)
  log.level             debug, info, warn, error
  log.format            text, json
  server.addr           Listen address for pubs serve
  server.admin_user     Basic auth user name
  server.rate_limit     Imports per second (0 disables)
  server.rate_burst     Imports allowed in a burst
  server.max_upload_mb  Largest accepted submission

The admin password hash is set with 'pubs hash-password --save'.
Values can also come from PUBS_ environment variables (PUBS_SERVER_ADDR).`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// configKey reads and writes one settable config value.
type configKey struct {
	name string
	get  func(*config.Config) string
	set  func(*config.Config, string) error
}

var configKeys = []configKey{
	{
		name: "style",
		get:  func(c *config.Config) string { return c.Style },
		set: func(c *config.Config, v string) error {
			if _, err := style.Lookup(v); err != nil {
				return err
			}
			c.Style = v
			return nil
		},
	},
	{
		name: "legacy",
		get:  func(c *config.Config) string { return strconv.FormatBool(c.Legacy) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid legacy: %s (want true or false)", v)
			}
			c.Legacy = b
			return nil
		},
	},
	{
		name: "log.level",
		get:  func(c *config.Config) string { return c.Log.Level },
		set:  func(c *config.Config, v string) error { c.Log.Level = strings.ToLower(v); return nil },
	},
	{
		name: "log.format",
		get:  func(c *config.Config) string { return c.Log.Format },
		set:  func(c *config.Config, v string) error { c.Log.Format = strings.ToLower(v); return nil },
	},
	{
		name: "server.addr",
		get:  func(c *config.Config) string { return c.Server.Addr },
		set:  func(c *config.Config, v string) error { c.Server.Addr = v; return nil },
	},
	{
		name: "server.admin_user",
		get:  func(c *config.Config) string { return c.Server.AdminUser },
		set:  func(c *config.Config, v string) error { c.Server.AdminUser = v; return nil },
	},
	{
		name: "server.rate_limit",
		get:  func(c *config.Config) string { return strconv.FormatFloat(c.Server.RateLimit, 'g', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid server.rate_limit: %s", v)
			}
			c.Server.RateLimit = f
			return nil
		},
	},
	{
		name: "server.rate_burst",
		get:  func(c *config.Config) string { return strconv.Itoa(c.Server.RateBurst) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid server.rate_burst: %s", v)
			}
			c.Server.RateBurst = n
			return nil
		},
	},
	{
		name: "server.max_upload_mb",
		get:  func(c *config.Config) string { return strconv.FormatInt(c.Server.MaxUploadMB, 10) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid server.max_upload_mb: %s", v)
			}
			c.Server.MaxUploadMB = n
			return nil
		},
	},
}

// normalizeKey accepts server-addr, SERVER_ADDR and server.addr alike.
func normalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "-", "_")
	if !strings.Contains(key, ".") {
		for _, section := range []string{"log_", "server_"} {
			if strings.HasPrefix(key, section) {
				key = strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
				break
			}
		}
	}
	return key
}

func findConfigKey(key string) (configKey, bool) {
	name := normalizeKey(key)
	for _, k := range configKeys {
		if k.name == name {
			return k, true
		}
	}
	return configKey{}, false
}

// configValues returns every settable key with its current value.
func configValues(cfg *config.Config) map[string]string {
	values := make(map[string]string, len(configKeys))
	for _, k := range configKeys {
		values[k.name] = k.get(cfg)
	}
	return values
}

// setConfigValue applies one value and validates the result.
func setConfigValue(cfg *config.Config, key, value string) (string, error) {
	k, ok := findConfigKey(key)
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	if err := k.set(cfg, value); err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return k.name, nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	cfg := mustLoadConfig(root)

	if len(args) == 0 {
		if humanOutput {
			for _, k := range configKeys {
				fmt.Printf("%-21s %s\n", k.name+":", k.get(cfg))
			}
			if cfg.Server.AdminPassword == "" {
				fmt.Printf("%-21s %s\n", "server.admin_password:", "(not set, auth disabled)")
			}
		} else {
			outputJSON(configValues(cfg))
		}
		return nil
	}

	if len(args) == 1 {
		k, ok := findConfigKey(args[0])
		if !ok {
			exitWithError(ExitError, "unknown configuration key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(k.get(cfg))
		} else {
			outputJSON(map[string]string{k.name: k.get(cfg)})
		}
		return nil
	}

	name, err := setConfigValue(cfg, args[0], args[1])
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Updated %s to %s\n", name, args[1])
	} else {
		outputJSON(UpdateResponse{
			Status: "updated",
			Key:    name,
			Value:  args[1],
		})
	}
	return nil
}
