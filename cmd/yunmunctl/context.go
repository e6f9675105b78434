package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"yunmun/api/internal/config"
	"yunmun/api/internal/logging"
	"yunmun/api/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	db     *sql.DB
	store  *store.Store
	logger *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				if err := os.Setenv("YUNMUN_CONFIG", path); err != nil {
					c.configErr = err
					return
				}
			}
		}
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: "text", Output: os.Stderr})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = &cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// openDB connects without touching the schema.
func (c *commandContext) openDB(ctx context.Context) (*sql.DB, store.Dialect, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	dialect, err := store.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, "", err
	}
	if c.db == nil {
		db, err := store.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("connect to database: %w", err)
		}
		c.db = db
	}
	return c.db, dialect, nil
}

// openStore connects and brings the schema up to date.
func (c *commandContext) openStore(ctx context.Context) (*store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	db, dialect, err := c.openDB(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		return nil, err
	}
	c.store = store.New(db, dialect)
	return c.store, nil
}

func (c *commandContext) close() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
		c.store = nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
