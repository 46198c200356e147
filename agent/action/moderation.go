package action

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

const maxTimeoutMinutes = 40320

func moderationActions() []builtin {
	return []builtin{
		{
			decl: Declaration{
				Name:        "banMember",
				Description: "Ban a member from the server. Requires Ban Members. You cannot ban yourself or the owner.",
				Parameters: []Field{
					required(str("userId", "Member to ban.", "998877665544332211")),
					str("reason", "Reason recorded in the audit log.", "Spamming invites"),
				},
				Response: []Field{
					str("userId", "Banned user id.", nil),
					boolean("banned", "Always true.", nil),
					str("reason", "Recorded reason.", nil),
				},
			},
			exec: banMember,
		},
		{
			decl: Declaration{
				Name:        "timeoutMember",
				Description: "Time out a member so they cannot talk for a number of minutes (1 to 40320). Requires Timeout Members.",
				Parameters: []Field{
					required(str("userId", "Member to time out.", "998877665544332211")),
					required(integer("minutes", "Length of the timeout in minutes.", 60)),
					str("reason", "Reason recorded in the audit log.", "Cooling off"),
				},
				Response: []Field{
					str("userId", "Timed out user id.", nil),
					integer("minutes", "Timeout length.", nil),
					str("until", "When the timeout ends, RFC 3339.", nil),
				},
			},
			exec: timeoutMember,
		},
	}
}

// moderationTarget applies the checks shared by punitive actions.
func moderationTarget(ctx context.Context, ec contractx.ExecutionContext, sc scope, userID string, verb string) (*platformx.Member, error) {
	if err := preventSelf(ec, userID, verb); err != nil {
		return nil, err
	}
	target, err := guildMember(ctx, ec, sc, userID)
	if err != nil {
		return nil, err
	}
	if target.IsOwner || target.UserID == sc.guild.OwnerID {
		return nil, fmt.Errorf("%w: you cannot %s the server owner", contractx.ErrPermission, verb)
	}
	if !sc.member.Outranks(target.TopRolePosition) {
		return nil, fmt.Errorf("%w: %s is not below your highest role", contractx.ErrPermission, displayName(target))
	}
	return target, nil
}

func banMember(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermBanMembers, "ban members"); err != nil {
		return nil, err
	}
	target, err := moderationTarget(ctx, ec, sc, p.String("userId"), "ban")
	if err != nil {
		return nil, err
	}
	reason := p.StringOr("reason", "No reason provided")
	if err := ec.Platform.BanMember(ctx, sc.guildID(), target.UserID, reason); err != nil {
		return nil, fmt.Errorf("ban member: %w", err)
	}
	return map[string]any{"userId": target.UserID, "banned": true, "reason": reason}, nil
}

func timeoutMember(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermModerateMembers, "time out members"); err != nil {
		return nil, err
	}
	minutes := p.Int("minutes")
	if minutes < 1 || minutes > maxTimeoutMinutes {
		return nil, fmt.Errorf("%w: minutes must be between 1 and %d", contractx.ErrValidation, maxTimeoutMinutes)
	}
	target, err := moderationTarget(ctx, ec, sc, p.String("userId"), "time out")
	if err != nil {
		return nil, err
	}
	until := ec.Clock().Add(time.Duration(minutes) * time.Minute)
	if err := ec.Platform.TimeoutMember(ctx, sc.guildID(), target.UserID, until); err != nil {
		return nil, fmt.Errorf("time out member: %w", err)
	}
	return map[string]any{"userId": target.UserID, "minutes": minutes, "until": formatTime(until)}, nil
}
