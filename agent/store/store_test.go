package store

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(Config{
		Driver: DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	s := New(db)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestTicketLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	err := s.CreateTicket(ctx, &Ticket{
		ID:        "t-1",
		GuildID:   "g1",
		ChannelID: "c1",
		OwnerID:   "owner",
		Subject:   "refund",
	})
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}

	got, err := s.TicketByChannel(ctx, "c1")
	if err != nil {
		t.Fatalf("TicketByChannel() error = %v", err)
	}
	if got.Status != TicketOpen || got.OwnerID != "owner" || got.IsClaimed() {
		t.Fatalf("unexpected ticket: %#v", got)
	}

	at := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	claimed, err := s.ClaimTicket(ctx, "c1", "staff", at)
	if err != nil {
		t.Fatalf("ClaimTicket() error = %v", err)
	}
	if claimed.ClaimedBy != "staff" || claimed.Status != TicketClaimed {
		t.Fatalf("unexpected claimed ticket: %#v", claimed)
	}

	_, err = s.ClaimTicket(ctx, "c1", "other", at)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("second ClaimTicket() error = %v, want ErrAlreadyClaimed", err)
	}

	open, err := s.OpenTickets(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("OpenTickets() error = %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open ticket, got %d", len(open))
	}

	closed, err := s.CloseTicket(ctx, "c1", "staff", "resolved", at)
	if err != nil {
		t.Fatalf("CloseTicket() error = %v", err)
	}
	if closed.Status != TicketClosed || closed.CloseReason != "resolved" {
		t.Fatalf("unexpected closed ticket: %#v", closed)
	}

	_, err = s.CloseTicket(ctx, "c1", "staff", "again", at)
	if !errors.Is(err, ErrTicketClosed) {
		t.Fatalf("second CloseTicket() error = %v, want ErrTicketClosed", err)
	}

	open, err = s.OpenTickets(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("OpenTickets() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open tickets, got %d", len(open))
	}
}

func TestTicketNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.TicketByChannel(context.Background(), "missing")
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("TicketByChannel() error = %v, want ErrTicketNotFound", err)
	}
	_, err = s.ClaimTicket(context.Background(), "missing", "x", time.Now())
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("ClaimTicket() error = %v, want ErrTicketNotFound", err)
	}
}

func TestMemberStatsIncrements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	zero, err := s.MemberStats(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("MemberStats() error = %v", err)
	}
	if zero.XP != 0 || zero.Credits != 0 {
		t.Fatalf("expected zero stats, got %#v", zero)
	}

	if _, err := s.AddXP(ctx, "g1", "u1", 150); err != nil {
		t.Fatalf("AddXP() error = %v", err)
	}
	m, err := s.AddXP(ctx, "g1", "u1", 100)
	if err != nil {
		t.Fatalf("AddXP() error = %v", err)
	}
	if m.XP != 250 {
		t.Fatalf("XP = %d, want 250", m.XP)
	}

	m, err = s.AddCredits(ctx, "g1", "u1", 40)
	if err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}
	if m.Credits != 40 || m.XP != 250 {
		t.Fatalf("unexpected stats: %#v", m)
	}

	if _, err := s.AddXP(ctx, "g1", "u2", 900); err != nil {
		t.Fatalf("AddXP() error = %v", err)
	}
	board, err := s.Leaderboard(ctx, "g1", 5)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(board) != 2 || board[0].UserID != "u2" || board[1].UserID != "u1" {
		t.Fatalf("unexpected leaderboard: %#v", board)
	}
}

func TestLevelForXP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		xp      int64
		level   int64
		into    int64
		forNext int64
	}{
		{0, 0, 0, 100},
		{99, 0, 99, 100},
		{100, 1, 0, 155},
		{255, 2, 0, 220},
		{-5, 0, 0, 100},
	}
	for _, tc := range cases {
		got := LevelForXP(tc.xp)
		if got.Level != tc.level || got.XPIntoLevel != tc.into || got.XPForNext != tc.forNext {
			t.Fatalf("LevelForXP(%d) = %#v, want level=%d into=%d next=%d", tc.xp, got, tc.level, tc.into, tc.forNext)
		}
	}
}

func TestOpenTicketByOwnerSkipsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	// More open tickets than any listing page.
	for i := 0; i < 120; i++ {
		id := strconv.Itoa(i)
		if err := s.CreateTicket(ctx, &Ticket{ID: "t-" + id, GuildID: "g1", ChannelID: "c-" + id, OwnerID: "u-" + id}); err != nil {
			t.Fatalf("CreateTicket(%d) error = %v", i, err)
		}
	}

	got, err := s.OpenTicketByOwner(ctx, "g1", "u-119")
	if err != nil {
		t.Fatalf("OpenTicketByOwner() error = %v", err)
	}
	if got.ChannelID != "c-119" {
		t.Fatalf("ChannelID = %q, want c-119", got.ChannelID)
	}

	if _, err := s.CloseTicket(ctx, "c-119", "u-119", "done", time.Now()); err != nil {
		t.Fatalf("CloseTicket() error = %v", err)
	}
	if _, err := s.OpenTicketByOwner(ctx, "g1", "u-119"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("OpenTicketByOwner() after close error = %v, want ErrTicketNotFound", err)
	}
	if _, err := s.OpenTicketByOwner(ctx, "g2", "u-1"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("OpenTicketByOwner() other guild error = %v, want ErrTicketNotFound", err)
	}
}
