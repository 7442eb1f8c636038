// Package cli is the storefront command line: session management, route
// checks, authenticated API calls and the local navigation server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lachlan2k/storefront-gate/internal/apiclient"
	"github.com/lachlan2k/storefront-gate/internal/config"
	"github.com/lachlan2k/storefront-gate/internal/kvstore"
	"github.com/lachlan2k/storefront-gate/internal/logging"
	"github.com/lachlan2k/storefront-gate/internal/session"
)

const defaultConfigPath = "storefront.toml"

// app holds what every command needs. It is filled in by the root command's
// pre-run hook.
type app struct {
	configPath string

	conf    *config.Config
	logger  *zap.Logger
	kv      kvstore.Store
	session *session.Store
	api     *apiclient.Client
}

func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
	}
	return config.LoadFromTomlFileAndValidate(path)
}

func openStore(conf *config.Config) (kvstore.Store, error) {
	switch conf.Session.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Session.Redis.Addr,
			Password: conf.Session.Redis.Password,
			DB:       conf.Session.Redis.DB,
		})
		return kvstore.NewRedis(rdb, conf.Session.Redis.Prefix), nil
	case config.BackendMemory:
		return kvstore.NewMemory(), nil
	}
	return kvstore.OpenBolt(conf.Session.Path)
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("couldn't load .env: %w", err)
	}

	conf, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.conf = conf

	a.logger, err = logging.New(conf.Log.Level, conf.Log.Development)
	if err != nil {
		return err
	}

	a.kv, err = openStore(conf)
	if err != nil {
		return fmt.Errorf("couldn't open session store: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.session = session.New(ctx, a.kv, a.logger)

	a.api = apiclient.New(conf.API.BaseURL, a.session,
		apiclient.WithLogger(a.logger),
		apiclient.WithHTTPClient(&http.Client{Timeout: time.Duration(conf.API.Timeout) * time.Second}),
	)

	return nil
}

// teardown releases whatever setup got as far as opening.
func (a *app) teardown() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil && a.logger != nil {
			a.logger.Warn("couldn't close session store", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// execute runs root and tears down afterwards, also when a command fails.
// cobra skips post-run hooks on error, so this can't live in one.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	defer a.teardown()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront session and route access tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Path to config file")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.routesCommand(),
		a.checkCommand(),
		a.fetchCommand(),
		a.profileCommand(),
		a.ordersCommand(),
		a.serveCommand(),
	)

	return root
}

func Execute(ctx context.Context) error {
	a := &app{}
	return a.execute(ctx, a.rootCommand())
}
