// Package cli provides the docroute command line: store connectivity and
// health checks, collection listing, route resolution, collection drops and
// configuration inspection.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/nimburion/docroute/pkg/health"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/resilience"
	"github.com/nimburion/docroute/pkg/store/factory"
	"github.com/nimburion/docroute/pkg/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes environment overrides unless --env-prefix is set.
const DefaultEnvPrefix = "DOCROUTE"

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// OpenClient overrides the store factory. Defaults to factory.NewClient.
	OpenClient ClientFactory
	// RegisterTypes declares record types so that resolve can use their
	// metadata.
	RegisterTypes func(*selector.Registry)
}

type rootFlags struct {
	configFile string
	envPrefix  string
}

// NewCommand creates the root command with ping, health, collections,
// resolve, drop, config and version subcommands.
func NewCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docroute"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = DefaultEnvPrefix
	}
	if opts.OpenClient == nil {
		opts.OpenClient = factory.NewClient
	}

	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", opts.EnvPrefix, "prefix of environment overrides")

	// withRuntime loads configuration, opens the store and closes it after fn.
	withRuntime := func(cmd *cobra.Command, fn func(ctx context.Context, rt *Runtime) error) error {
		_, cfg, _, log, err := loadConfig(flags.configFile, flags.envPrefix, opts.Name)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rt, err := NewRuntime(ctx, cfg, log, opts.OpenClient, opts.RegisterTypes)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := rt.Close(context.Background()); closeErr != nil {
				log.Error("failed to close runtime", "error", closeErr)
			}
		}()
		return fn(ctx, rt)
	}

	rootCmd.AddCommand(
		newVersionCommand(opts.Name),
		newPingCommand(withRuntime),
		newHealthCommand(withRuntime),
		newCollectionsCommand(withRuntime),
		newResolveCommand(withRuntime),
		newDropCommand(withRuntime),
		newConfigCommand(flags, opts.Name),
	)
	return rootCmd
}

type runtimeRunner func(cmd *cobra.Command, fn func(ctx context.Context, rt *Runtime) error) error

func newVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
		},
	}
}

func newPingCommand(run runtimeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the document store answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, rt *Runtime) error {
				timeout := rt.Config.Database.PingTimeout
				started := time.Now()
				if !resilience.Reachable(ctx, timeout, rt.Client.Ping) {
					return fmt.Errorf("document store not reachable within %s", timeout)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s store reachable (%s)\n",
					rt.Config.Database.Type, time.Since(started).Round(time.Millisecond))
				return nil
			})
		},
	}
}

func newHealthCommand(run runtimeRunner) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run the store health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, rt *Runtime) error {
				registry := health.NewRegistry()
				registry.Register(health.NewStoreChecker(rt.Config.Database.Type, rt.Client, rt.Selector.DefaultDatabase(), rt.Config.Database.PingTimeout))
				result := registry.Check(ctx)
				if err := writeFormatted(cmd.OutOrStdout(), format, result); err != nil {
					return err
				}
				if result.Status == health.StatusUnhealthy {
					return errors.New("document store is unhealthy")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newCollectionsCommand(run runtimeRunner) *cobra.Command {
	var partitionName string
	cmd := &cobra.Command{
		Use:   "collections [database]",
		Short: "List the collections of a database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, rt *Runtime) error {
				ctx, err := rt.Bind(ctx, partitionName)
				if err != nil {
					return err
				}
				database := ""
				if len(args) == 1 {
					database = args[0]
				}
				names, err := rt.Selector.CollectionNames(ctx, database)
				if err != nil {
					return fmt.Errorf("list collections: %w", err)
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&partitionName, "partition", "p", "", "partition to bind")
	return cmd
}

func newResolveCommand(run runtimeRunner) *cobra.Command {
	var (
		typeName      string
		md            selector.Metadata
		explicit      string
		partitionName string
		format        string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the database and collection a record type routes to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(typeName) == "" {
				return errors.New("--type is required")
			}
			return run(cmd, func(ctx context.Context, rt *Runtime) error {
				ctx, err := rt.Bind(ctx, partitionName)
				if err != nil {
					return err
				}
				declared, _ := rt.Registry.LookupName(typeName)
				if cmd.Flags().Changed("database") {
					declared.Database = strings.TrimSpace(md.Database)
				}
				if cmd.Flags().Changed("collection") {
					declared.Collection = strings.TrimSpace(md.Collection)
				}
				target, err := rt.Selector.ResolveTarget(ctx, typeName, declared, explicit)
				if err != nil {
					return err
				}
				return writeFormatted(cmd.OutOrStdout(), format, target)
			})
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "record type name")
	cmd.Flags().StringVar(&md.Database, "database", "", "declared database of the type")
	cmd.Flags().StringVar(&md.Collection, "collection", "", "declared collection of the type")
	cmd.Flags().StringVar(&explicit, "explicit", "", "explicit collection passed to the operation")
	cmd.Flags().StringVarP(&partitionName, "partition", "p", "", "partition to bind")
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newDropCommand(run runtimeRunner) *cobra.Command {
	var (
		confirmed     bool
		database      string
		partitionName string
	)
	cmd := &cobra.Command{
		Use:   "drop <collection>",
		Short: "Drop a collection, routed through partitioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to drop without --yes")
			}
			return run(cmd, func(ctx context.Context, rt *Runtime) error {
				ctx, err := rt.Bind(ctx, partitionName)
				if err != nil {
					return err
				}
				target, err := rt.Selector.ResolveTarget(ctx, args[0], selector.Metadata{Database: database}, "")
				if err != nil {
					return err
				}
				if err := rt.Client.DropCollection(ctx, target.Database, target.Collection); err != nil {
					return fmt.Errorf("drop %s.%s: %w", target.Database, target.Collection, err)
				}
				rt.Logger.Warn("collection dropped", "database", target.Database, "collection", target.Collection, "partition", target.Partition)
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %s.%s\n", target.Database, target.Collection)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the drop")
	cmd.Flags().StringVar(&database, "database", "", "database holding the collection")
	cmd.Flags().StringVarP(&partitionName, "partition", "p", "", "partition to bind")
	return cmd
}

func newConfigCommand(flags *rootFlags, name string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, _, _, err := loadConfig(flags.configFile, flags.envPrefix, name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, _, _, _, err := loadConfig(flags.configFile, flags.envPrefix, name)
			if err != nil {
				return err
			}
			settings := loader.AllSettings()
			if !showSecrets {
				settings = redactSettingsMap(settings, loader.SecretSettings())
			}
			return writeFormatted(cmd.OutOrStdout(), "yaml", settings)
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configCmd.AddCommand(showCmd)
	return configCmd
}

func writeFormatted(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q (supported: yaml, json)", format)
	}
}

func redactSettingsMap(settings, secrets map[string]interface{}) map[string]interface{} {
	if len(settings) == 0 || len(secrets) == 0 {
		return settings
	}
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		mask, ok := secrets[key]
		if !ok {
			out[key] = value
			continue
		}
		out[key] = redactSettingValue(value, mask)
	}
	return out
}

func redactSettingValue(value, mask interface{}) interface{} {
	if maskMap, ok := mask.(map[string]interface{}); ok {
		valueMap, ok := value.(map[string]interface{})
		if !ok {
			return "***"
		}
		return redactSettingsMap(valueMap, maskMap)
	}
	if mask == nil || reflect.ValueOf(mask).IsZero() {
		return value
	}
	return "***"
}

// Execute runs the command and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
