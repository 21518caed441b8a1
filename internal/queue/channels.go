package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/database"
)

var ErrChannelExists = errors.New("channel already exists")

func (s *store) CreateChannel(ctx context.Context, c Channel) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	c.MinMMR = clamp(c.MinMMR)
	activeOn, err := json.Marshal(weekdays(c.ActiveOn))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schedule: %w", err)
	}
	var discordID *string
	if c.DiscordID != "" {
		discordID = &c.DiscordID
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO channels (discord_id, name, min_mmr, max_mmr, active, active_on) VALUES (?, ?, ?, ?, ?, ?)",
		discordID, c.Name, c.MinMMR, c.MaxMMR, c.Active, string(activeOn),
	)
	if err != nil {
		if database.IsConstraint(err) {
			return nil, fmt.Errorf("%w: %s", ErrChannelExists, c.Name)
		}
		return nil, fmt.Errorf("failed to insert channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel id: %w", err)
	}
	log.Info("Channel created", "channelID", id, "name", c.Name, "minMMR", c.MinMMR)
	return getChannel(ctx, s.db, id)
}

func weekdays(days []time.Weekday) []time.Weekday {
	if days == nil {
		return []time.Weekday{}
	}
	return days
}

func clamp(mmr int) int {
	return min(max(mmr, MinChannelMMR), MaxChannelMMR)
}

func (s *store) GetChannel(ctx context.Context, channelID int64) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getChannel(ctx, s.db, channelID)
}

func (s *store) GetChannelByDiscordID(ctx context.Context, discordID string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := scanChannel(s.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE discord_id = ?", discordID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: discord id %s", ErrChannelNotFound, discordID)
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

func (s *store) ListChannels(ctx context.Context) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listChannels(ctx, s.db)
}

func listChannels(ctx context.Context, db *sql.DB) ([]Channel, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+channelColumns+" FROM channels ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

// SetChannelMinMMR clamps minMMR into range. It is refused while the
// channel has any queue that is not closed.
func (s *store) SetChannelMinMMR(ctx context.Context, channelID int64, minMMR int) (*Channel, Reason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		c      *Channel
		reason Reason
	)
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		c, reason = nil, ReasonNone
		if _, err := getChannel(ctx, tx, channelID); err != nil {
			return err
		}
		var active int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM queues WHERE channel_id = ? AND state != 'CLOSED'", channelID).Scan(&active); err != nil {
			return fmt.Errorf("failed to count active queues: %w", err)
		}
		if active > 0 {
			reason = ReasonChannelBusy
			return nil
		}
		if _, err := tx.ExecContext(ctx, "UPDATE channels SET min_mmr = ? WHERE id = ?", clamp(minMMR), channelID); err != nil {
			return fmt.Errorf("failed to update channel: %w", err)
		}
		var err error
		c, err = getChannel(ctx, tx, channelID)
		return err
	})
	if err != nil {
		return nil, ReasonNone, err
	}
	if reason != ReasonNone {
		s.reject(reason)
		return nil, reason, nil
	}
	log.Info("Channel min rating changed", "channelID", channelID, "minMMR", c.MinMMR)
	return c, ReasonNone, nil
}

func (s *store) SetChannelActive(ctx context.Context, channelID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE channels SET active = ? WHERE id = ?", active, channelID)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrChannelNotFound, channelID)
	}
	log.Info("Channel activity changed", "channelID", channelID, "active", active)
	return nil
}

func (s *store) ActivateScheduled(ctx context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels, err := listChannels(ctx, s.db)
	if err != nil {
		return nil, err
	}
	var changed []int64
	for _, c := range channels {
		if len(c.ActiveOn) == 0 {
			continue
		}
		want := slices.Contains(c.ActiveOn, now.Weekday())
		if want == c.Active {
			continue
		}
		if _, err := s.db.ExecContext(ctx, "UPDATE channels SET active = ? WHERE id = ?", want, c.ID); err != nil {
			return changed, fmt.Errorf("failed to update channel %d: %w", c.ID, err)
		}
		log.Info("Scheduled channel activity change", "channelID", c.ID, "active", want, "weekday", now.Weekday())
		changed = append(changed, c.ID)
	}
	return changed, nil
}
