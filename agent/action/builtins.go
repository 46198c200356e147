package action

import (
	"context"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	storex "github.com/tanpawarit/chative-guildbot/agent/store"
)

// ResponseAction is the terminal action whose responseMessage becomes the
// reply.
const ResponseAction = "response"

type TicketStore interface {
	TicketByChannel(ctx context.Context, channelID string) (*storex.Ticket, error)
	CreateTicket(ctx context.Context, t *storex.Ticket) error
	ClaimTicket(ctx context.Context, channelID string, claimerID string, at time.Time) (*storex.Ticket, error)
	CloseTicket(ctx context.Context, channelID string, closedBy string, reason string, at time.Time) (*storex.Ticket, error)
	OpenTickets(ctx context.Context, guildID string, limit int) ([]storex.Ticket, error)
	OpenTicketByOwner(ctx context.Context, guildID string, ownerID string) (*storex.Ticket, error)
}

type LevelStore interface {
	MemberStats(ctx context.Context, guildID string, userID string) (*storex.MemberStats, error)
	AddXP(ctx context.Context, guildID string, userID string, amount int64) (*storex.MemberStats, error)
	AddCredits(ctx context.Context, guildID string, userID string, amount int64) (*storex.MemberStats, error)
	Leaderboard(ctx context.Context, guildID string, limit int) ([]storex.MemberStats, error)
}

// Dependencies are the collaborators the built-in actions reach beyond the
// platform. Actions whose collaborator is nil are not registered.
type Dependencies struct {
	Tickets    TicketStore
	Levels     LevelStore
	Translator contractx.Translator
	Scheduler  contractx.MessageScheduler
	NewID      func() string
}

func (d Dependencies) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

type builtin struct {
	decl Declaration
	exec Executor
}

// RegisterBuiltins registers every built-in action the dependencies allow.
func RegisterBuiltins(r *Registry, deps Dependencies) error {
	all := make([]builtin, 0, 40)
	all = append(all, serverActions()...)
	all = append(all, roleActions()...)
	all = append(all, channelActions()...)
	all = append(all, moderationActions()...)
	all = append(all, messagingActions(deps)...)
	all = append(all, eventActions()...)
	all = append(all, utilityActions(deps)...)
	if deps.Tickets != nil {
		all = append(all, ticketActions(deps)...)
	}
	if deps.Levels != nil {
		all = append(all, levelingActions(deps)...)
	}

	for _, b := range all {
		if err := r.Register(b.decl, b.exec); err != nil {
			return err
		}
	}
	return nil
}
