package store

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrAlreadyClaimed = errors.New("ticket already claimed")
	ErrTicketClosed   = errors.New("ticket is closed")
)

type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketClaimed TicketStatus = "claimed"
	TicketClosed  TicketStatus = "closed"
)

// Ticket is a support ticket bound to its private channel.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID          string       `bun:"id,pk"`
	GuildID     string       `bun:"guild_id,notnull"`
	ChannelID   string       `bun:"channel_id,notnull,unique"`
	OwnerID     string       `bun:"owner_id,notnull"`
	Subject     string       `bun:"subject"`
	Status      TicketStatus `bun:"status,notnull"`
	ClaimedBy   string       `bun:"claimed_by,nullzero"`
	ClaimedAt   time.Time    `bun:"claimed_at,nullzero"`
	ClosedBy    string       `bun:"closed_by,nullzero"`
	CloseReason string       `bun:"close_reason,nullzero"`
	ClosedAt    time.Time    `bun:"closed_at,nullzero"`
	CreatedAt   time.Time    `bun:"created_at,notnull"`
}

func (t *Ticket) IsClaimed() bool {
	return t != nil && t.ClaimedBy != ""
}

// MemberStats holds leveling experience and store credits for one member.
type MemberStats struct {
	bun.BaseModel `bun:"table:member_stats,alias:ms"`

	GuildID   string    `bun:"guild_id,pk"`
	UserID    string    `bun:"user_id,pk"`
	XP        int64     `bun:"xp,notnull"`
	Credits   int64     `bun:"credits,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Level is the derived leveling position for an amount of experience.
type Level struct {
	Level       int64
	XPIntoLevel int64
	XPForNext   int64
}

// XPForLevel is the experience needed to go from level to level+1.
func XPForLevel(level int64) int64 {
	return 5*level*level + 50*level + 100
}

func LevelForXP(xp int64) Level {
	if xp < 0 {
		xp = 0
	}
	var level int64
	remaining := xp
	for remaining >= XPForLevel(level) {
		remaining -= XPForLevel(level)
		level++
	}
	return Level{Level: level, XPIntoLevel: remaining, XPForNext: XPForLevel(level)}
}

func (m *MemberStats) Level() Level {
	if m == nil {
		return LevelForXP(0)
	}
	return LevelForXP(m.XP)
}
