package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
	storex "github.com/tanpawarit/chative-guildbot/agent/store"
)

type ticketView struct {
	TicketID  string `json:"ticketId"`
	ChannelID string `json:"channelId"`
	OwnerID   string `json:"ownerId"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	ClaimedBy string `json:"claimedBy"`
	CreatedAt string `json:"createdAt"`
}

type closedTicket struct {
	ticketView
	Reason string `json:"reason"`
}

var ticketFields = []Field{
	str("ticketId", "Ticket id.", nil),
	str("channelId", "Private ticket channel id.", nil),
	str("ownerId", "User who opened the ticket.", nil),
	str("subject", "Ticket subject.", nil),
	oneOf(str("status", "open, claimed or closed.", nil), "open", "claimed", "closed"),
	str("claimedBy", "Staff member handling the ticket, empty when unclaimed.", nil),
	str("createdAt", "When the ticket was opened, RFC 3339.", nil),
}

func viewTicket(t *storex.Ticket) ticketView {
	return ticketView{
		TicketID:  t.ID,
		ChannelID: t.ChannelID,
		OwnerID:   t.OwnerID,
		Subject:   t.Subject,
		Status:    string(t.Status),
		ClaimedBy: t.ClaimedBy,
		CreatedAt: formatTime(t.CreatedAt),
	}
}

func ticketActions(deps Dependencies) []builtin {
	tickets := deps.Tickets
	return []builtin{
		{
			decl: Declaration{
				Name:        "createTicket",
				Description: "Open a support ticket for the requesting user in a new private channel.",
				Parameters: []Field{
					required(str("subject", "What the ticket is about.", "Cannot access the VIP channel")),
				},
				Response: ticketFields,
			},
			exec: createTicket(deps),
		},
		{
			decl: Declaration{
				Name:        "getTicketInfo",
				Description: "Get the ticket bound to a channel. Defaults to the current channel.",
				Parameters: []Field{
					str("channelId", "Ticket channel id.", "112233445566778899"),
				},
				Response: ticketFields,
			},
			exec: getTicketInfo(tickets),
		},
		{
			decl: Declaration{
				Name:        "listOpenTickets",
				Description: "List tickets in this server that are not closed, oldest first.",
				Parameters: []Field{
					integer("limit", "Maximum results, 1 to 25.", 10),
				},
				Response: []Field{
					list("tickets", "Open or claimed tickets.", object("ticket", "", ticketFields...)),
					integer("count", "Number of tickets returned.", nil),
				},
			},
			exec: listOpenTickets(tickets),
		},
		{
			decl: Declaration{
				Name:        "claimTicket",
				Description: "Claim a ticket as the staff member handling it. Defaults to the current channel. Requires the support role or Manage Channels; you cannot claim your own ticket.",
				Parameters: []Field{
					str("channelId", "Ticket channel id.", "112233445566778899"),
				},
				Response: ticketFields,
			},
			exec: claimTicket(tickets),
		},
		{
			decl: Declaration{
				Name:        "closeTicket",
				Description: "Close a ticket. Defaults to the current channel. Allowed for the ticket owner, the claimer or anyone with Manage Channels.",
				Parameters: []Field{
					str("channelId", "Ticket channel id.", "112233445566778899"),
					str("reason", "Why the ticket is closed.", "Resolved"),
				},
				Response: append(append([]Field{}, ticketFields...), str("reason", "Close reason.", nil)),
			},
			exec: closeTicket(tickets),
		},
	}
}

func ticketError(err error, channelID string) error {
	switch {
	case errors.Is(err, storex.ErrTicketNotFound):
		return fmt.Errorf("%w: there is no ticket in channel %s", contractx.ErrNotFound, channelID)
	case errors.Is(err, storex.ErrAlreadyClaimed), errors.Is(err, storex.ErrTicketClosed):
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	default:
		return fmt.Errorf("ticket store: %w", err)
	}
}

func isSupport(ec contractx.ExecutionContext, m *platformx.Member) bool {
	if m.IsOwner || m.Permissions.Has(platformx.PermManageChannels) {
		return true
	}
	return ec.Settings.SupportRoleID != "" && m.HasRole(ec.Settings.SupportRoleID)
}

func createTicket(deps Dependencies) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		subject := p.String("subject")
		if subject == "" || len(subject) > 200 {
			return nil, fmt.Errorf("%w: subject must be 1 to 200 characters", contractx.ErrValidation)
		}

		existing, err := deps.Tickets.OpenTicketByOwner(ctx, sc.guildID(), ec.UserID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: you already have an open ticket in channel %s", contractx.ErrValidation, existing.ChannelID)
		case !errors.Is(err, storex.ErrTicketNotFound):
			return nil, ticketError(err, "")
		}

		overwrites := []platformx.PermissionOverwrite{
			{ID: sc.guildID(), Type: platformx.OverwriteRole, Deny: platformx.PermViewChannel},
			{ID: ec.UserID, Type: platformx.OverwriteMember, Allow: platformx.PermViewChannel | platformx.PermSendMessages},
		}
		if role := ec.Settings.SupportRoleID; role != "" {
			overwrites = append(overwrites, platformx.PermissionOverwrite{
				ID: role, Type: platformx.OverwriteRole, Allow: platformx.PermViewChannel | platformx.PermSendMessages,
			})
		}
		name, err := channelName("ticket " + sc.member.Username)
		if err != nil {
			return nil, err
		}
		ch, err := ec.Platform.CreateChannel(ctx, sc.guildID(), platformx.ChannelParams{
			Name:       name,
			Type:       platformx.ChannelText,
			ParentID:   ec.Settings.TicketCategoryID,
			Topic:      subject,
			Overwrites: overwrites,
		})
		if err != nil {
			return nil, fmt.Errorf("create ticket channel: %w", err)
		}

		t := &storex.Ticket{
			ID:        deps.newID(),
			GuildID:   sc.guildID(),
			ChannelID: ch.ID,
			OwnerID:   ec.UserID,
			Subject:   subject,
			Status:    storex.TicketOpen,
			CreatedAt: ec.Clock(),
		}
		// The channel is left in place if the insert fails.
		if err := deps.Tickets.CreateTicket(ctx, t); err != nil {
			return nil, ticketError(err, ch.ID)
		}
		return viewTicket(t), nil
	}
}

func getTicketInfo(tickets TicketStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		channelID := p.StringOr("channelId", sc.channel.ID)
		t, err := tickets.TicketByChannel(ctx, channelID)
		if err != nil {
			return nil, ticketError(err, channelID)
		}
		if t.GuildID != sc.guildID() {
			return nil, fmt.Errorf("%w: there is no ticket in channel %s", contractx.ErrNotFound, channelID)
		}
		return viewTicket(t), nil
	}
}

func listOpenTickets(tickets TicketStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		limit := limitBetween(p.Int("limit"), 10, 1, 25)
		open, err := tickets.OpenTickets(ctx, sc.guildID(), int(limit))
		if err != nil {
			return nil, ticketError(err, "")
		}
		out := make([]ticketView, 0, len(open))
		for i := range open {
			out = append(out, viewTicket(&open[i]))
		}
		return map[string]any{"tickets": out, "count": len(out)}, nil
	}
}

func claimTicket(tickets TicketStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		channelID := p.StringOr("channelId", sc.channel.ID)
		t, err := tickets.TicketByChannel(ctx, channelID)
		if err != nil {
			return nil, ticketError(err, channelID)
		}
		if t.GuildID != sc.guildID() {
			return nil, fmt.Errorf("%w: there is no ticket in channel %s", contractx.ErrNotFound, channelID)
		}
		if !isSupport(ec, sc.member) {
			return nil, fmt.Errorf("%w: only support staff can claim tickets", contractx.ErrPermission)
		}
		if t.OwnerID == ec.UserID {
			return nil, fmt.Errorf("%w: you cannot claim your own ticket", contractx.ErrPermission)
		}
		if t.IsClaimed() {
			if t.ClaimedBy == ec.UserID {
				return nil, fmt.Errorf("%w: you already claimed this ticket", contractx.ErrValidation)
			}
			return nil, fmt.Errorf("%w: ticket already claimed by %s", contractx.ErrValidation, t.ClaimedBy)
		}

		claimed, err := tickets.ClaimTicket(ctx, channelID, ec.UserID, ec.Clock())
		if err != nil {
			return nil, ticketError(err, channelID)
		}
		return viewTicket(claimed), nil
	}
}

func closeTicket(tickets TicketStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		channelID := p.StringOr("channelId", sc.channel.ID)
		t, err := tickets.TicketByChannel(ctx, channelID)
		if err != nil {
			return nil, ticketError(err, channelID)
		}
		if t.GuildID != sc.guildID() {
			return nil, fmt.Errorf("%w: there is no ticket in channel %s", contractx.ErrNotFound, channelID)
		}
		allowed := t.OwnerID == ec.UserID ||
			t.ClaimedBy == ec.UserID ||
			sc.member.IsOwner ||
			sc.member.Permissions.Has(platformx.PermManageChannels)
		if !allowed {
			return nil, fmt.Errorf("%w: only the ticket owner, its claimer or channel managers can close it", contractx.ErrPermission)
		}

		reason := strings.TrimSpace(p.StringOr("reason", "No reason provided"))
		closed, err := tickets.CloseTicket(ctx, channelID, ec.UserID, reason, ec.Clock())
		if err != nil {
			return nil, ticketError(err, channelID)
		}
		return closedTicket{ticketView: viewTicket(closed), Reason: reason}, nil
	}
}
