package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/common"
	"github.com/ledgerloom/ledgerloom/internal/config"
	"github.com/ledgerloom/ledgerloom/internal/service"
	"github.com/ledgerloom/ledgerloom/internal/storage"
)

// initStorage opens the configured database and brings its schema up
// to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := config.DatabasePath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// withStorage runs fn with an initialized storage and closes it after.
func withStorage(ctx context.Context, fn func(service.Storage) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	err = fn(store)
	var validation *common.ValidationError
	if errors.As(err, &validation) {
		fmt.Fprintln(os.Stderr, cli.FormatError(validation.Reason))
		return errors.New("command failed")
	}
	return err
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, s)
	}
	return id, nil
}
