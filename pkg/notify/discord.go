package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gametrack/pkg/catalog"
	"gametrack/pkg/config"
	"gametrack/pkg/logging"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Announcer posts refresh run outcomes to a Discord channel. It is a
// send-only client; no commands are handled.
type Announcer struct {
	session   *discordgo.Session
	config    *config.NotifyConfig
	logger    *logging.Logger
	channelID string
	mu        sync.RWMutex
	ready     bool
}

// NewAnnouncer creates a Discord announcer from the notify configuration.
func NewAnnouncer(cfg *config.NotifyConfig, logger *logging.Logger) (*Announcer, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	a := &Announcer{
		session:   session,
		config:    cfg,
		logger:    logger,
		channelID: cfg.ChannelID,
	}

	session.AddHandler(a.onReady)
	session.Identify.Intents = discordgo.IntentsGuildMessages

	return a, nil
}

// Start opens the session and waits until the gateway reports ready.
func (a *Announcer) Start(ctx context.Context) error {
	a.logger.WithComponent("notify").Info("Starting Discord announcer")

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.After(30 * time.Second)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for Discord announcer to be ready")
		case <-ticker.C:
			a.mu.RLock()
			ready := a.ready
			a.mu.RUnlock()
			if ready {
				a.logger.WithComponent("notify").Info("Discord announcer connected")
				return nil
			}
		}
	}
}

// Stop closes the session.
func (a *Announcer) Stop() error {
	a.logger.WithComponent("notify").Info("Stopping Discord announcer")
	return a.session.Close()
}

// IsReady returns whether the announcer can send messages.
func (a *Announcer) IsReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// AnnounceRun posts the terminal state of a refresh run. Suitable for use
// as a Refresher OnFinish callback; send failures are logged, not returned.
func (a *Announcer) AnnounceRun(state catalog.SyncState) {
	if !a.IsReady() {
		a.logger.WithComponent("notify").Warn("Announcer not ready, dropping run notification")
		return
	}

	embed := runEmbed(state)
	if _, err := a.session.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
		a.logger.WithComponent("notify").WithError(err).Error("Failed to send run notification")
		return
	}

	a.logger.WithComponent("notify").WithFields(logrus.Fields{
		"status":     state.Status,
		"item_count": state.ItemCount,
	}).Info("Run notification sent")
}

func runEmbed(state catalog.SyncState) *discordgo.MessageEmbed {
	switch state.Status {
	case catalog.StatusCompleted:
		return &discordgo.MessageEmbed{
			Title:       "Catalog refresh completed",
			Description: fmt.Sprintf("Published a snapshot with %d games.", state.ItemCount),
			Color:       0x00ff00, // Green
			Timestamp:   time.Now().Format(time.RFC3339),
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Completed at",
			},
		}
	case catalog.StatusStopped:
		return &discordgo.MessageEmbed{
			Title:       "Catalog refresh stopped",
			Description: fmt.Sprintf("Run stopped by operator at offset %d. The previous snapshot remains in service.", state.Offset),
			Color:       0xffaa00, // Amber
			Timestamp:   time.Now().Format(time.RFC3339),
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Stopped at",
			},
		}
	case catalog.StatusError:
		return &discordgo.MessageEmbed{
			Title:       "Catalog refresh failed",
			Description: fmt.Sprintf("```\n%s\n```", state.LastError),
			Color:       0xff0000, // Red
			Timestamp:   time.Now().Format(time.RFC3339),
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Failed at",
			},
		}
	default:
		return &discordgo.MessageEmbed{
			Title:       "Catalog refresh finished",
			Description: fmt.Sprintf("Run ended in state %q.", state.Status),
			Color:       0x0099ff,
			Timestamp:   time.Now().Format(time.RFC3339),
		}
	}
}

func (a *Announcer) onReady(s *discordgo.Session, event *discordgo.Ready) {
	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()

	a.logger.WithComponent("notify").WithFields(logrus.Fields{
		"bot_user_id": event.User.ID,
		"guild_count": len(event.Guilds),
	}).Info("Discord announcer ready")
}
