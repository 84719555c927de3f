package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"rankforge/rankforge"
)

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading Rankforge Nakama plugin...")

	if _, err := rankforge.Init(ctx, logger, nk, initializer,
		rankforge.WithUserRegistry("", true),
		rankforge.WithLeaderboardsSystem("leaderboards.json", true),
	); err != nil {
		logger.Error("Failed to initialize Rankforge systems: %v", err)
		return err
	}

	logger.Info("Rankforge Nakama plugin loaded in '%d' msec.", time.Now().Sub(initStart).Milliseconds())
	return nil
}

func main() {}
