package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/boardproject/boardadmin/pkg/admin"
	"github.com/boardproject/boardadmin/pkg/client"
	"github.com/boardproject/boardadmin/pkg/config"
	"github.com/boardproject/boardadmin/pkg/credential"
	"github.com/boardproject/boardadmin/pkg/logger"
	"github.com/boardproject/boardadmin/pkg/session"
	"github.com/boardproject/boardadmin/pkg/utils"
)

var (
	endpoint   string
	configPath string
	verbose    bool

	v = config.NewViper()
)

// Register adds the global flags and every admin command to root
func Register(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "Board API endpoint URL")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path (json, toml or yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Bind flags to viper
	for _, name := range []string{"endpoint", "config", "verbose"} {
		if err := v.BindPFlag(name, root.PersistentFlags().Lookup(name)); err != nil {
			log.Printf("Failed to bind %s flag: %v", name, err)
		}
	}

	root.SilenceUsage = true
	root.AddCommand(LoginCmd)
	root.AddCommand(LogoutCmd)
	root.AddCommand(WhoamiCmd)
	root.AddCommand(StatsCmd)
	root.AddCommand(AccountsCmd)
	root.AddCommand(MembersCmd)
	root.AddCommand(BoardsCmd)
}

// runtime is the wired client stack for one command invocation
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   credential.Store
	journal *logger.Journal
	session *session.Manager
	client  *client.Client
	api     *admin.API
}

func loadConfig() (*config.Config, error) {
	if v.GetString("config") == "" {
		v.SetDefault("config", filepath.Join(config.DefaultDir(), "config.yaml"))
	}
	return config.LoadWithViper(v)
}

func newRuntime(ctx context.Context, logOut io.Writer) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return buildRuntime(ctx, cfg, logOut)
}

func buildRuntime(ctx context.Context, cfg *config.Config, logOut io.Writer) (*runtime, error) {
	l := logger.New(cfg.Verbose, logOut)

	store, err := credential.NewStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	jar, err := session.NewPersistentJar(ctx, cfg.Endpoint, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpClient := utils.NewHTTPClient(utils.HTTPClientConfig{Timeout: cfg.Timeout(), Jar: jar})
	journal := logger.NewJournal(cfg.LogDir)
	manager := session.NewManager(cfg.Endpoint, httpClient, store,
		session.WithJar(jar),
		session.WithJournal(journal),
		session.WithLogger(l),
	)
	c := client.NewClient(cfg.Endpoint,
		client.WithHTTPClient(httpClient),
		client.WithStore(store),
		client.WithSessionExpiredHandler(manager),
		client.WithTokenRefreshedHook(manager.TokenRefreshed),
		client.WithRefreshTimeout(cfg.RefreshTimeout()),
		client.WithLogger(l),
	)

	return &runtime{
		cfg:     cfg,
		logger:  l,
		store:   store,
		journal: journal,
		session: manager,
		client:  c,
		api:     admin.New(c, l),
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// withRuntime runs fn with a wired runtime and closes it afterwards
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.logger.Warn("[STORE] failed to close credential store", "error", err)
		}
	}()
	return explain(fn(ctx, rt))
}

// explain turns authentication failures into actionable messages
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, client.ErrSessionExpired):
		return fmt.Errorf("session expired, run 'boardadmin login' again: %w", err)
	case errors.Is(err, client.ErrUnauthorized):
		return fmt.Errorf("not authorized for this operation: %w", err)
	}
	return err
}
