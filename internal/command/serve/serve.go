package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"servergate/internal/config"
	"servergate/pkg/api"
	"servergate/pkg/defaults"
	"servergate/pkg/flags"
	"servergate/pkg/flavors"
	"servergate/pkg/log"
	"servergate/pkg/orchestrator/memory"
	"servergate/pkg/ports"
)

const (
	httpBindAddrFlag   = "http-bind-addr"
	baseURLFlag        = "base-url"
	allowAdminAPIFlag  = "allow-admin-api"
	passwordLenFlag    = "password-length"
	reclaimFlag        = "reclaim-instance-interval"
	flavorsFileFlag    = "flavors"
	stateRootDirFlag   = "state-dir"
	instanceQuotaFlag  = "quota-instances"
	fileQuotaFlag      = "quota-injected-files"
	filePathQuotaFlag  = "quota-injected-file-path-bytes"
	fileBytesQuotaFlag = "quota-injected-file-content-bytes"
	imageMetaQuotaFlag = "quota-image-metadata-items"
)

// NewCommand builds the serve subcommand.
func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compute request gate",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return runServe(c.Context(), cfg)
		},
	}

	addServeFlags(cmd, cfg)

	return cmd, nil
}

func addServeFlags(cmd *cobra.Command, cfg *config.Config) {
	limits := memory.DefaultLimits()

	cmd.Flags().StringVar(&cfg.HTTPBindAddr, httpBindAddrFlag, defaults.HTTPBindAddr, "HTTP server bind address")
	cmd.Flags().StringVar(&cfg.BaseURL, baseURLFlag, defaults.BaseURL, "Base URL used in locations and references")
	cmd.Flags().BoolVar(&cfg.AllowAdminAPI, allowAdminAPIFlag, false, "Enable the administrative request surface")
	cmd.Flags().IntVar(&cfg.PasswordLength, passwordLenFlag, defaults.PasswordLength, "Length of generated admin passwords")
	cmd.Flags().DurationVar(&cfg.ReclaimInstanceInterval, reclaimFlag, 0, "When positive, deletes become soft deletes reclaimed after this interval")
	cmd.Flags().StringVar(&cfg.FlavorsFile, flavorsFileFlag, defaults.FlavorsFile, "Path to the TOML flavor catalog")
	cmd.Flags().StringVar(&cfg.StateRootDir, stateRootDirFlag, defaults.StateRootDir, "Directory for orchestrator state")
	cmd.Flags().IntVar(&cfg.Limits.InstancesPerProject, instanceQuotaFlag, limits.InstancesPerProject, "Instances allowed per project")
	cmd.Flags().IntVar(&cfg.Limits.InjectedFiles, fileQuotaFlag, limits.InjectedFiles, "Personality files allowed per request")
	cmd.Flags().IntVar(&cfg.Limits.InjectedFilePathBytes, filePathQuotaFlag, limits.InjectedFilePathBytes, "Longest allowed personality file path")
	cmd.Flags().IntVar(&cfg.Limits.InjectedFileContentBytes, fileBytesQuotaFlag, limits.InjectedFileContentBytes, "Largest allowed personality file content")
	cmd.Flags().IntVar(&cfg.Limits.ImageMetadataItems, imageMetaQuotaFlag, limits.ImageMetadataItems, "Metadata items allowed on snapshots and backups")
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()

	catalog, err := flavors.Load(fs, cfg.FlavorsFile)
	if err != nil {
		return fmt.Errorf("loading flavor catalog: %w", err)
	}

	orch, err := memory.New(fs, cfg.StateRootDir, catalog, cfg.Limits, time.Now)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	collection := &ports.Collection{
		Orchestrator: orch,
		Passwords:    memory.NewPasswordService(cfg.PasswordLength),
		Clock:        time.Now,
	}

	server := api.NewServer(&api.Config{
		BindAddr:                cfg.HTTPBindAddr,
		BaseURL:                 cfg.BaseURL,
		AllowAdminAPI:           cfg.AllowAdminAPI,
		ReclaimInstanceInterval: cfg.ReclaimInstanceInterval,
	}, collection)

	log.GetLogger(ctx).WithField("flavors", len(catalog.IDs())).Info("starting servergate")

	return server.Run(ctx)
}
