package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softdata/cohortsync/pkg/configuration"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf, err := configuration.Load(".env", ".env.local")
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("configuration: %w", err))
	}
	defer conf.Unload()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping %s:%s/%s: %w", conf.Database.Host, conf.Database.Port, conf.Database.Name, err))
	}
	return pool, nil
}

func databaseDSN() (string, error) {
	conf, err := configuration.Load(".env", ".env.local")
	if err != nil {
		return "", withCode(exitUsage, fmt.Errorf("configuration: %w", err))
	}
	defer conf.Unload()
	return conf.Database.Opts, nil
}
