package action

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

const postPermissions = platformx.PermViewChannel | platformx.PermSendMessages

const (
	maxMessageLength    = 2000
	maxScheduleMinutes  = 10080
	scheduleUnavailable = "message scheduling is not available"
)

func messagingActions(deps Dependencies) []builtin {
	out := []builtin{
		{
			decl: Declaration{
				Name:        "sendMessage",
				Description: "Post a message in a channel of this server. Defaults to the current channel.",
				Parameters: []Field{
					str("channelId", "Channel to post in.", "112233445566778899"),
					required(str("content", "Message text, at most 2000 characters.", "The event starts in 10 minutes!")),
				},
				Response: []Field{
					str("messageId", "Posted message id.", nil),
					str("channelId", "Channel the message went to.", nil),
				},
			},
			exec: sendMessage,
		},
		{
			decl: Declaration{
				Name:        "sendDirectMessage",
				Description: "Send a private message to a member of this server.",
				Parameters: []Field{
					required(str("userId", "Member to message.", "998877665544332211")),
					required(str("content", "Message text, at most 2000 characters.", "Your ticket was claimed.")),
				},
				Response: []Field{
					str("messageId", "Sent message id.", nil),
					str("userId", "Recipient user id.", nil),
				},
			},
			exec: sendDirectMessage,
		},
	}
	if deps.Scheduler != nil {
		out = append(out, builtin{
			decl: Declaration{
				Name:        "scheduleMessage",
				Description: "Post a message in a channel after a delay of 1 to 10080 minutes. Requires Manage Messages.",
				Parameters: []Field{
					str("channelId", "Channel to post in, the current one when omitted.", "112233445566778899"),
					required(str("content", "Message text, at most 2000 characters.", "Voting closes now.")),
					required(integer("minutes", "Delay before posting.", 30)),
				},
				Response: []Field{
					str("scheduleId", "Delivery id.", nil),
					str("channelId", "Channel the message will go to.", nil),
					str("deliverAt", "Planned delivery time, RFC 3339.", nil),
				},
			},
			exec: scheduleMessage(deps.Scheduler),
		})
	}
	return out
}

func messageContent(p Params) (string, error) {
	content := p.String("content")
	if content == "" {
		return "", fmt.Errorf("%w: content must not be empty", contractx.ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return "", fmt.Errorf("%w: content is longer than %d characters", contractx.ErrValidation, maxMessageLength)
	}
	return content, nil
}

func sendMessage(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	content, err := messageContent(p)
	if err != nil {
		return nil, err
	}
	ch, err := guildChannel(ctx, ec, sc, p.String("channelId"))
	if err != nil {
		return nil, err
	}
	if ch.Type == platformx.ChannelCategory {
		return nil, fmt.Errorf("%w: %s is a category, not a channel", contractx.ErrValidation, ch.Name)
	}
	if err := requireChannelPermission(sc.member, ch, postPermissions, "send messages"); err != nil {
		return nil, err
	}
	msg, err := ec.Platform.SendMessage(ctx, ch.ID, content)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return map[string]any{"messageId": msg.ID, "channelId": ch.ID}, nil
}

func sendDirectMessage(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	content, err := messageContent(p)
	if err != nil {
		return nil, err
	}
	target, err := guildMember(ctx, ec, sc, p.String("userId"))
	if err != nil {
		return nil, err
	}
	if target.Bot {
		return nil, fmt.Errorf("%w: %s is a bot and cannot receive direct messages", contractx.ErrValidation, displayName(target))
	}
	msg, err := ec.Platform.SendDirectMessage(ctx, target.UserID, content)
	if err != nil {
		return nil, fmt.Errorf("send direct message: %w", err)
	}
	return map[string]any{"messageId": msg.ID, "userId": target.UserID}, nil
}

func scheduleMessage(scheduler contractx.MessageScheduler) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		if ec.Settings.SchedulingDisabled {
			return nil, fmt.Errorf("%s on this server", scheduleUnavailable)
		}
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		if err := requirePermission(sc.member, platformx.PermManageMessages, "schedule messages"); err != nil {
			return nil, err
		}
		content, err := messageContent(p)
		if err != nil {
			return nil, err
		}
		minutes := p.Int("minutes")
		if minutes < 1 || minutes > maxScheduleMinutes {
			return nil, fmt.Errorf("%w: minutes must be between 1 and %d", contractx.ErrValidation, maxScheduleMinutes)
		}
		ch, err := guildChannel(ctx, ec, sc, p.String("channelId"))
		if err != nil {
			return nil, err
		}
		if ch.Type == platformx.ChannelCategory {
			return nil, fmt.Errorf("%w: %s is a category, not a channel", contractx.ErrValidation, ch.Name)
		}
		if err := requireChannelPermission(sc.member, ch, postPermissions, "schedule messages"); err != nil {
			return nil, err
		}

		delay := time.Duration(minutes) * time.Minute
		id, err := scheduler.Schedule(ctx, contractx.ScheduledMessage{
			GuildID:   sc.guildID(),
			ChannelID: ch.ID,
			AuthorID:  ec.UserID,
			Content:   content,
			DelaySecs: int64(delay / time.Second),
		})
		if err != nil {
			return nil, fmt.Errorf("schedule message: %w", err)
		}
		return map[string]any{
			"scheduleId": id,
			"channelId":  ch.ID,
			"deliverAt":  formatTime(ec.Clock().Add(delay)),
		}, nil
	}
}
