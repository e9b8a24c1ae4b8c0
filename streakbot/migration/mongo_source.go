package migration

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Source yields the documents of the legacy bot.
type Source interface {
	Streaks(ctx context.Context, fn func(MongoStreak) error) error
	GuildSettings(ctx context.Context, fn func(MongoGuildSettings) error) error
	UserSettings(ctx context.Context, fn func(MongoUserSettings) error) error
}

// MongoSource reads legacy documents from a live MongoDB database.
type MongoSource struct {
	db        *mongo.Database
	collNames map[string]string
}

func NewMongoSource(client *mongo.Client, dbName string) *MongoSource {
	return &MongoSource{
		db: client.Database(dbName),
		collNames: map[string]string{
			"streaks":       "streaks",
			"guildsettings": "guildsettings",
			"usersettings":  "usersettings",
		},
	}
}

// SetCollectionName overrides the collection name used for kind.
func (s *MongoSource) SetCollectionName(kind, name string) {
	if name != "" {
		s.collNames[kind] = name
	}
}

func (s *MongoSource) Streaks(ctx context.Context, fn func(MongoStreak) error) error {
	return each(ctx, s.db.Collection(s.collNames["streaks"]), fn)
}

func (s *MongoSource) GuildSettings(ctx context.Context, fn func(MongoGuildSettings) error) error {
	return each(ctx, s.db.Collection(s.collNames["guildsettings"]), fn)
}

func (s *MongoSource) UserSettings(ctx context.Context, fn func(MongoUserSettings) error) error {
	return each(ctx, s.db.Collection(s.collNames["usersettings"]), fn)
}

func each[T any](ctx context.Context, col *mongo.Collection, fn func(T) error) error {
	cur, err := col.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("query %s: %w", col.Name(), err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			logProgress(fmt.Sprintf("Skipping undecodable %s document: %v", col.Name(), err))
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cur.Err()
}
