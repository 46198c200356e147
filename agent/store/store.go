package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Store issues the ticket and leveling queries. Multi-statement operations
// are best effort and never wrapped in transactions.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func New(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) TicketByChannel(ctx context.Context, channelID string) (*Ticket, error) {
	var t Ticket
	err := s.db.NewSelect().Model(&t).Where("channel_id = ?", channelID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: channel=%s", ErrTicketNotFound, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("select ticket: %w", err)
	}
	return &t, nil
}

// OpenTicketByOwner returns the owner's ticket that is not closed yet.
func (s *Store) OpenTicketByOwner(ctx context.Context, guildID string, ownerID string) (*Ticket, error) {
	var t Ticket
	err := s.db.NewSelect().
		Model(&t).
		Where("guild_id = ?", guildID).
		Where("owner_id = ?", ownerID).
		Where("status != ?", TicketClosed).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: owner=%s", ErrTicketNotFound, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("select owner ticket: %w", err)
	}
	return &t, nil
}

func (s *Store) CreateTicket(ctx context.Context, t *Ticket) error {
	if t == nil || strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.ChannelID) == "" {
		return fmt.Errorf("create ticket: id and channel id are required")
	}
	if t.Status == "" {
		t.Status = TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	if _, err := s.db.NewInsert().Model(t).Exec(ctx); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// ClaimTicket marks an open ticket as claimed. Claiming an already claimed
// or closed ticket fails without changing it.
func (s *Store) ClaimTicket(ctx context.Context, channelID string, claimerID string, at time.Time) (*Ticket, error) {
	res, err := s.db.NewUpdate().
		Model((*Ticket)(nil)).
		Set("claimed_by = ?", claimerID).
		Set("claimed_at = ?", at.UTC()).
		Set("status = ?", TicketClaimed).
		Where("channel_id = ?", channelID).
		Where("status = ?", TicketOpen).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim ticket: %w", err)
	}
	if err := s.explainNoop(ctx, res, channelID); err != nil {
		return nil, err
	}
	return s.TicketByChannel(ctx, channelID)
}

func (s *Store) CloseTicket(ctx context.Context, channelID string, closedBy string, reason string, at time.Time) (*Ticket, error) {
	res, err := s.db.NewUpdate().
		Model((*Ticket)(nil)).
		Set("closed_by = ?", closedBy).
		Set("close_reason = ?", reason).
		Set("closed_at = ?", at.UTC()).
		Set("status = ?", TicketClosed).
		Where("channel_id = ?", channelID).
		Where("status != ?", TicketClosed).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("close ticket: %w", err)
	}
	if err := s.explainNoop(ctx, res, channelID); err != nil {
		return nil, err
	}
	return s.TicketByChannel(ctx, channelID)
}

func (s *Store) explainNoop(ctx context.Context, res sql.Result, channelID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	t, err := s.TicketByChannel(ctx, channelID)
	if err != nil {
		return err
	}
	switch t.Status {
	case TicketClosed:
		return ErrTicketClosed
	case TicketClaimed:
		return fmt.Errorf("%w by %s", ErrAlreadyClaimed, t.ClaimedBy)
	default:
		return fmt.Errorf("ticket %s was not updated", t.ID)
	}
}

func (s *Store) OpenTickets(ctx context.Context, guildID string, limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = 25
	}
	var tickets []Ticket
	err := s.db.NewSelect().
		Model(&tickets).
		Where("guild_id = ?", guildID).
		Where("status != ?", TicketClosed).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select open tickets: %w", err)
	}
	return tickets, nil
}

// MemberStats returns zeroed stats for members that have none recorded yet.
func (s *Store) MemberStats(ctx context.Context, guildID string, userID string) (*MemberStats, error) {
	var m MemberStats
	err := s.db.NewSelect().
		Model(&m).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &MemberStats{GuildID: guildID, UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select member stats: %w", err)
	}
	return &m, nil
}

func (s *Store) AddXP(ctx context.Context, guildID string, userID string, amount int64) (*MemberStats, error) {
	return s.increment(ctx, guildID, userID, "xp", amount)
}

func (s *Store) AddCredits(ctx context.Context, guildID string, userID string, amount int64) (*MemberStats, error) {
	return s.increment(ctx, guildID, userID, "credits", amount)
}

func (s *Store) increment(ctx context.Context, guildID string, userID string, column string, amount int64) (*MemberStats, error) {
	now := s.now().UTC()
	res, err := s.db.NewUpdate().
		Model((*MemberStats)(nil)).
		Set("? = ? + ?", bun.Ident(column), bun.Ident(column), amount).
		Set("updated_at = ?", now).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update member %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		row := &MemberStats{GuildID: guildID, UserID: userID, UpdatedAt: now}
		switch column {
		case "xp":
			row.XP = amount
		case "credits":
			row.Credits = amount
		}
		if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert member stats: %w", err)
		}
	}
	return s.MemberStats(ctx, guildID, userID)
}

func (s *Store) Leaderboard(ctx context.Context, guildID string, limit int) ([]MemberStats, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []MemberStats
	err := s.db.NewSelect().
		Model(&rows).
		Where("guild_id = ?", guildID).
		Order("xp DESC", "user_id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	return rows, nil
}
