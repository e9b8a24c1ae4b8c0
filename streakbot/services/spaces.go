// services/spaces.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// ObjectPutter is the S3 call the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SpacesArchive uploads daily rollover snapshots to a DigitalOcean Spaces bucket.
type SpacesArchive struct {
	client ObjectPutter
	bucket string
}

func NewSpacesArchive(ctx context.Context, spacesKey, spacesSecret, region, bucket string) (*SpacesArchive, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return NewSpacesArchiveWithClient(s3.NewFromConfig(cfg), bucket), nil
}

func NewSpacesArchiveWithClient(client ObjectPutter, bucket string) *SpacesArchive {
	return &SpacesArchive{client: client, bucket: bucket}
}

// Snapshot is the archived state of a guild after a rollover.
type Snapshot struct {
	RunID      string          `json:"run_id"`
	GuildID    string          `json:"guild_id"`
	ClosingDay string          `json:"closing_day"`
	TakenAt    time.Time       `json:"taken_at"`
	Top        []string        `json:"top"`
	Broken     int             `json:"broken"`
	Streaks    []SnapshotEntry `json:"streaks"`
}

type SnapshotEntry struct {
	UserID      string `json:"user_id"`
	Topic       string `json:"topic"`
	Channel     string `json:"channel"`
	StreakLevel int    `json:"streak_level"`
	BestStreak  int    `json:"best_streak"`
	LastPosted  string `json:"last_posted_on"`
}

// NewSnapshot builds the snapshot of res with the guild's alive records.
func NewSnapshot(res *streaks.RolloverResult, alive []*streaks.Record, takenAt time.Time) *Snapshot {
	snap := &Snapshot{
		RunID:      res.RunID,
		GuildID:    res.GuildID,
		ClosingDay: res.ClosingDay.String(),
		TakenAt:    takenAt.UTC(),
		Broken:     len(res.Broken),
		Streaks:    make([]SnapshotEntry, 0, len(alive)),
	}
	for _, s := range res.Top {
		snap.Top = append(snap.Top, s.UserID)
	}
	for _, rec := range alive {
		snap.Streaks = append(snap.Streaks, SnapshotEntry{
			UserID:      rec.UserID,
			Topic:       rec.Topic,
			Channel:     rec.Channel,
			StreakLevel: rec.StreakLevel,
			BestStreak:  rec.BestStreak,
			LastPosted:  rec.LastPostedOn.String(),
		})
	}
	return snap
}

// SnapshotKey is the object key of a guild's snapshot for day.
func SnapshotKey(guildID, day string) string {
	return fmt.Sprintf("snapshots/%s/%s.json", guildID, day)
}

func (s *SpacesArchive) Upload(ctx context.Context, snap *Snapshot) error {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := SnapshotKey(snap.GuildID, snap.ClosingDay)
	start := time.Now()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	slog.Debug("Snapshot uploaded",
		slog.String("type", "sys"),
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("size", len(body)),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (s *SpacesArchive) GetBucket() string {
	return s.bucket
}
