package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"siteaudit/internal/config"
	"siteaudit/internal/configuration"
	"siteaudit/internal/dataaccess"
	"siteaudit/internal/logger"
	"siteaudit/internal/management"
	"siteaudit/pkg/bootstrap"
	"siteaudit/pkg/logging"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change which audits run for which sites",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the latest configuration version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManagement(cmd.Context(), func(ctx context.Context, svc *management.Service) error {
					cfg, err := svc.Current(ctx)
					if err != nil {
						return err
					}
					return printConfiguration(cfg)
				})
			},
		},
		changeCmd("enable", true),
		changeCmd("disable", false),
		defaultCmd(),
	)
	return cmd
}

func changeCmd(use string, enable bool) *cobra.Command {
	var handler, siteID, orgID, changedBy string

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s an audit type for one site or organization", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := management.Change{Handler: handler, Enable: enable, ChangedBy: changedBy}
			switch {
			case siteID != "" && orgID != "":
				return fmt.Errorf("--site and --org are mutually exclusive")
			case siteID != "":
				ch.Scope, ch.ID = management.ScopeSite, siteID
			case orgID != "":
				ch.Scope, ch.ID = management.ScopeOrg, orgID
			default:
				return fmt.Errorf("one of --site or --org is required")
			}

			return withManagement(cmd.Context(), func(ctx context.Context, svc *management.Service) error {
				cfg, err := svc.Apply(ctx, ch)
				if err != nil {
					return err
				}
				return printConfiguration(cfg)
			})
		},
	}

	cmd.Flags().StringVar(&handler, "handler", "", "Audit type (required)")
	cmd.Flags().StringVar(&siteID, "site", "", "Site id")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().StringVar(&changedBy, "changed-by", os.Getenv("USER"), "Recorded author of the change")
	_ = cmd.MarkFlagRequired("handler")
	return cmd
}

func defaultCmd() *cobra.Command {
	var handler, changedBy string
	var enabled bool

	cmd := &cobra.Command{
		Use:   "default",
		Short: "Set whether an audit type runs for sites not listed explicitly",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManagement(cmd.Context(), func(ctx context.Context, svc *management.Service) error {
				cfg, err := svc.SetDefault(ctx, handler, enabled, changedBy)
				if err != nil {
					return err
				}
				return printConfiguration(cfg)
			})
		},
	}

	cmd.Flags().StringVar(&handler, "handler", "", "Audit type (required)")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "Enable the audit type by default")
	cmd.Flags().StringVar(&changedBy, "changed-by", os.Getenv("USER"), "Recorded author of the change")
	_ = cmd.MarkFlagRequired("handler")
	return cmd
}

// withManagement connects to the configuration store, and to Redis when
// configured so cached copies are invalidated.
func withManagement(ctx context.Context, fn func(context.Context, *management.Service) error) error {
	earlyLog := logging.NewEarlyLog()
	if ctx == nil {
		ctx = context.Background()
	}

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile == "" {
		return fmt.Errorf("config file is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return err
	}
	defer log.Sync()

	conn := bootstrap.NewDatabaseConnector(cfg, log)
	pg, err := conn.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	rdb, err := conn.InitRedis(ctx)
	if err != nil {
		log.Warnw("Redis unavailable, cached configuration will expire on its own", "error", err)
	}
	defer conn.ShutdownDatabases(ctx, rdb, pg, nil)

	var opts []management.ServiceOption
	if rdb != nil {
		opts = append(opts, management.WithInvalidator(dataaccess.NewCacheInvalidator(rdb)))
	}

	svc := management.NewService(dataaccess.NewConfigurationRepository(pg), log, opts...)
	return fn(logging.WithServiceName(ctx, serviceName), svc)
}

func printConfiguration(cfg *configuration.Configuration) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
