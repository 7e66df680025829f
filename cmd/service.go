package cmd

import (
	"context"
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flagged-dev/flagged/internal/utils"
	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/flagged"
	"github.com/flagged-dev/flagged/pkg/lookup"
	"github.com/flagged-dev/flagged/pkg/storage"
	"github.com/flagged-dev/flagged/pkg/whttp"
)

// dbPathFromConfig returns the absolute sqlite path. The --dbpath flag wins
// over store.path.
func dbPathFromConfig(cmd *cobra.Command) (string, error) {
	path := viper.GetString("store.path")
	if f := cmd.Flags().Lookup("dbpath"); f != nil && f.Changed {
		path = f.Value.String()
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return utils.GetAbsDBPath(expanded)
}

// openStore opens the configured engine. The returned lock is nil for
// engines that do their own cross-process coordination.
func openStore(ctx context.Context, cmd *cobra.Command) (storage.Store, *utils.DBLock, error) {
	switch driver := viper.GetString("store.driver"); driver {
	case "redis":
		r, err := storage.OpenRedis(ctx, viper.GetString("store.redis_addr"), viper.GetString("store.redis_prefix"))
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	case "sqlite", "":
		path, err := dbPathFromConfig(cmd)
		if err != nil {
			return nil, nil, err
		}
		lock, err := utils.NewDBLock(path)
		if err != nil {
			return nil, nil, err
		}
		db, err := storage.Open(path)
		if err != nil {
			return nil, nil, err
		}
		utils.Log.Debugf("Using account store at %s", path)
		return db, lock, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q (want sqlite or redis)", driver)
	}
}

func loadSettings() (filter.Settings, error) {
	s := filter.DefaultSettings()
	if err := viper.UnmarshalKey("settings", &s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func newLookupClient(cmd *cobra.Command) (*lookup.Client, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	if err := whttp.SetupProxy(proxy); err != nil {
		return nil, err
	}
	return lookup.New(lookup.Config{
		Endpoint:    viper.GetString("api.endpoint"),
		QueryID:     viper.GetString("api.query_id"),
		BearerToken: viper.GetString("api.bearer_token"),
		Cookie:      viper.GetString("api.cookie"),
		Retries:     viper.GetInt("api.retries"),
		Timeout:     viper.GetDuration("api.timeout"),
		Logger:      utils.LeveledLogger{L: utils.Log},
	}), nil
}

// newService builds the full pipeline from the configuration. A store that
// cannot be opened is replaced by one that fails every call, so lookups
// still work without persistence.
func newService(ctx context.Context, cmd *cobra.Command) (*flagged.Service, *utils.DBLock, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	client, err := newLookupClient(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, lock, err := openStore(ctx, cmd)
	if err != nil {
		utils.Log.Warnf("Account store unavailable, results will not be persisted: %v", err)
		store = storage.Unavailable{Cause: err}
	}
	if viper.GetString("api.cookie") == "" {
		utils.Log.Warn("api.cookie is empty; lookups will most likely be rejected")
	}

	svc := flagged.New(flagged.Options{
		Settings:         settings,
		Store:            store,
		Fetcher:          client,
		MaxActive:        viper.GetInt("queue.max_active"),
		Interval:         viper.GetDuration("queue.interval"),
		RateLimitBackoff: viper.GetDuration("queue.rate_limit_backoff"),
		FetchTimeout:     viper.GetDuration("api.timeout") * time.Duration(viper.GetInt("api.retries")+1),
		Log:              utils.Log,
	})
	svc.Init(ctx)
	return svc, lock, nil
}
