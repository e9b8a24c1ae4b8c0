package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/logger"
)

// CommandObserver records command outcomes, e.g. as metrics.
type CommandObserver interface {
	ObserveCommand(name string, took time.Duration, err error)
}

// Invocation describes who ran a command and where.
type Invocation struct {
	Name      string
	UserID    string
	UserName  string
	GuildID   string
	ChannelID string
}

// RunWithLogging runs fn with the command timeout and logs its start,
// completion, slowness, failure or timeout. obs may be nil.
func RunWithLogging(inv Invocation, obs CommandObserver, fn func(ctx context.Context) error) error {
	start := time.Now()

	slog.Info("Command started",
		slog.String("type", "cmd"),
		slog.String("name", inv.Name),
		slog.String("user_id", inv.UserID),
		slog.String("user_name", inv.UserName),
		slog.String("guild_id", inv.GuildID),
		slog.String("channel_id", inv.ChannelID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	var err error
	select {
	case err = <-done:
		duration := time.Since(start)
		if err == nil && duration > config.SlowCommandThreshold {
			slog.Warn("Command executed slowly",
				slog.String("type", "cmd"),
				slog.String("name", inv.Name),
				slog.String("user_id", inv.UserID),
				slog.String("user_name", inv.UserName),
				slog.Duration("took", duration),
				slog.String("status", "slow"),
			)
			break
		}
		logger.LogCommand(inv.Name, inv.UserName, duration, err)

	case <-ctx.Done():
		slog.Error("Command timed out",
			slog.String("type", "cmd"),
			slog.String("name", inv.Name),
			slog.String("user_id", inv.UserID),
			slog.String("user_name", inv.UserName),
			slog.String("status", "timeout"),
			slog.Duration("timeout", config.CommandExecutionTimeout),
		)
		err = fmt.Errorf("command timed out after %s", config.CommandExecutionTimeout)
	}

	if obs != nil {
		obs.ObserveCommand(inv.Name, time.Since(start), err)
	}
	return err
}

// WrapWithLogging wraps a slash command handler with logging functionality
func WrapWithLogging(name string, obs CommandObserver, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		inv := Invocation{
			Name:      name,
			UserID:    e.User().ID.String(),
			UserName:  e.User().Username,
			ChannelID: e.ChannelID().String(),
		}
		if guildID := e.GuildID(); guildID != nil {
			inv.GuildID = guildID.String()
		}
		return RunWithLogging(inv, obs, func(context.Context) error {
			return h(e)
		})
	}
}
