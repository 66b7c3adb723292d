// -- cmd/runtime.go --
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/browser"
	"github.com/xkilldash9x/quill-cli/internal/observability"
	"github.com/xkilldash9x/quill-cli/internal/platform/xiaohongshu"
	"github.com/xkilldash9x/quill-cli/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runtime wires the session store, browser manager and platform adapter for
// one command invocation.
type runtime struct {
	platform schemas.Platform
	shutdown func(context.Context)
}

// newRuntime assembles the stack for the configured platform identity.
func newRuntime(ctx context.Context) (*runtime, error) {
	logger := observability.GetLogger()

	st, closeStore, err := newStore(ctx, logger)
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(appCfg, appCfg.Platform.ID, logger)

	var platform schemas.Platform
	switch appCfg.Platform.ID {
	case xiaohongshu.PlatformID:
		platform = xiaohongshu.New(appCfg, mgr, st, logger)
	default:
		closeStore()
		return nil, fmt.Errorf("unknown platform %q", appCfg.Platform.ID)
	}

	return &runtime{
		platform: platform,
		shutdown: func(ctx context.Context) {
			if err := mgr.Shutdown(ctx); err != nil {
				logger.Warn("Browser shutdown reported an error", zap.Error(err))
			}
			closeStore()
		},
	}, nil
}

func newStore(ctx context.Context, logger *zap.Logger) (store.Store, func(), error) {
	switch appCfg.Store.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, appCfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect session database: %w", err)
		}
		st, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	default:
		st, err := store.NewFileStore(appCfg.Store.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

// emit renders a command result as indented JSON on stdout.
func emit(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
