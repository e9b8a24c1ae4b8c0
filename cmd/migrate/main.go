package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ellavondegurechaff/streakbot/streakbot"
	"github.com/ellavondegurechaff/streakbot/streakbot/database"
	"github.com/ellavondegurechaff/streakbot/streakbot/database/repositories"
	"github.com/ellavondegurechaff/streakbot/streakbot/logger"
	"github.com/ellavondegurechaff/streakbot/streakbot/migration"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

var (
	configPath  string
	mongoURI    string
	mongoDB     string
	batchSize   int
	parallelism int
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "import streaks and settings from the legacy MongoDB database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := streakbot.LoadConfig(configPath)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			return err
		}
		loc, err := cfg.Streaks.Location()
		if err != nil {
			return err
		}

		db, err := database.New(ctx, database.DBConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Database,
			PoolSize: cfg.DB.PoolSize,
		})
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			return err
		}
		defer db.Close()

		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Failed to initialize database schema", "error", err)
			return err
		}

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}()

		importer := migration.NewImporter(
			migration.NewMongoSource(client, mongoDB),
			repositories.NewStreakRepository(db.BunDB()),
			repositories.NewSettingsRepository(db.BunDB()),
			streaks.NewDayBoundary(loc),
		)
		importer.SetBatchSize(batchSize)
		importer.SetParallelism(parallelism)

		if _, err := importer.Run(ctx); err != nil {
			slog.Error("Migration failed", "error", err)
			return err
		}

		slog.Info("Migration completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.toml", "path to config")
	rootCmd.Flags().StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "legacy MongoDB connection string")
	rootCmd.Flags().StringVar(&mongoDB, "mongo-db", "streakbot", "legacy MongoDB database name")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "records written per batch (0 keeps the default)")
	rootCmd.Flags().IntVar(&parallelism, "parallelism", 0, "batches written concurrently (0 keeps the default)")
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler()))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
