package action

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

type createdChannel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parentId"`
}

func channelActions() []builtin {
	return []builtin{
		{
			decl: Declaration{
				Name:        "createChannel",
				Description: "Create a channel, optionally inside a category. Requires Manage Channels.",
				Parameters: []Field{
					required(str("name", "Channel name.", "event-chat")),
					oneOf(str("type", "Channel type, text when omitted.", "text"), "text", "voice", "announcement", "stage", "forum"),
					str("parentId", "Category id to place the channel in.", "223344556677889900"),
					str("topic", "Channel topic.", "Chat for the weekend event"),
				},
				Response: channelSummaryFields,
			},
			exec: createChannel,
		},
		{
			decl: Declaration{
				Name:        "createCategory",
				Description: "Create a channel category. Requires Manage Channels.",
				Parameters: []Field{
					required(str("name", "Category name.", "Events")),
				},
				Response: []Field{
					str("id", "Category id.", nil),
					str("name", "Category name.", nil),
				},
			},
			exec: createCategory,
		},
		{
			decl: Declaration{
				Name:        "deleteChannel",
				Description: "Delete a channel or category in this server. Requires Manage Channels.",
				Parameters: []Field{
					required(str("channelId", "Channel to delete.", "112233445566778899")),
				},
				Response: []Field{
					str("id", "Deleted channel id.", nil),
					str("name", "Deleted channel name.", nil),
					boolean("deleted", "Always true.", nil),
				},
			},
			exec: deleteChannel,
		},
		{
			decl: Declaration{
				Name:        "setChannelLock",
				Description: "Lock or unlock a channel so regular members cannot or can send messages. Defaults to the current channel. Requires Manage Channels.",
				Parameters: []Field{
					str("channelId", "Channel to change.", "112233445566778899"),
					required(boolean("locked", "True to lock, false to unlock.", true)),
				},
				Response: []Field{
					str("channelId", "Changed channel id.", nil),
					boolean("locked", "New lock state.", nil),
				},
			},
			exec: setChannelLock,
		},
	}
}

func channelName(raw string) (string, error) {
	name := strings.ToLower(strings.Join(strings.Fields(raw), "-"))
	if name == "" || len(name) > 100 {
		return "", fmt.Errorf("%w: channel name must be 1 to 100 characters", contractx.ErrValidation)
	}
	return name, nil
}

func createChannel(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageChannels, "create channels"); err != nil {
		return nil, err
	}
	name, err := channelName(p.String("name"))
	if err != nil {
		return nil, err
	}
	kind := platformx.ChannelText
	if raw := p.String("type"); raw != "" {
		var ok bool
		if kind, ok = platformx.ParseChannelType(raw); !ok || kind == platformx.ChannelCategory || kind == platformx.ChannelDM {
			return nil, fmt.Errorf("%w: cannot create a channel of type %q", contractx.ErrValidation, raw)
		}
	}
	parentID := p.String("parentId")
	if parentID != "" {
		parent, err := guildChannel(ctx, ec, sc, parentID)
		if err != nil {
			return nil, err
		}
		if parent.Type != platformx.ChannelCategory {
			return nil, fmt.Errorf("%w: %s is not a category", contractx.ErrValidation, parent.Name)
		}
	}

	ch, err := ec.Platform.CreateChannel(ctx, sc.guildID(), platformx.ChannelParams{
		Name:     name,
		Type:     kind,
		ParentID: parentID,
		Topic:    p.String("topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return createdChannel{ID: ch.ID, Name: ch.Name, Type: ch.Type.String(), ParentID: ch.ParentID}, nil
}

func createCategory(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageChannels, "create categories"); err != nil {
		return nil, err
	}
	name := p.String("name")
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: category name must be 1 to 100 characters", contractx.ErrValidation)
	}
	ch, err := ec.Platform.CreateChannel(ctx, sc.guildID(), platformx.ChannelParams{Name: name, Type: platformx.ChannelCategory})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return map[string]any{"id": ch.ID, "name": ch.Name}, nil
}

func deleteChannel(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageChannels, "delete channels"); err != nil {
		return nil, err
	}
	id := p.String("channelId")
	if id == "" {
		return nil, fmt.Errorf("%w: a channel id is required", contractx.ErrValidation)
	}
	ch, err := guildChannel(ctx, ec, sc, id)
	if err != nil {
		return nil, err
	}
	if err := ec.Platform.DeleteChannel(ctx, ch.ID); err != nil {
		return nil, fmt.Errorf("delete channel: %w", err)
	}
	return map[string]any{"id": ch.ID, "name": ch.Name, "deleted": true}, nil
}

func setChannelLock(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageChannels, "lock channels"); err != nil {
		return nil, err
	}
	ch, err := guildChannel(ctx, ec, sc, p.String("channelId"))
	if err != nil {
		return nil, err
	}
	if ch.Type == platformx.ChannelCategory || ch.Type == platformx.ChannelVoice {
		return nil, fmt.Errorf("%w: %s has no messages to lock", contractx.ErrValidation, ch.Name)
	}

	if err := requireChannelPermission(sc.member, ch, platformx.PermViewChannel|platformx.PermManageChannels, "lock channels"); err != nil {
		return nil, err
	}

	locked := p.Bool("locked")
	overwrite := everyoneOverwrite(ch, sc.guildID())
	overwrite.Allow &^= platformx.PermSendMessages
	if locked {
		overwrite.Deny |= platformx.PermSendMessages
	} else {
		overwrite.Deny &^= platformx.PermSendMessages
	}
	if err := ec.Platform.SetPermissionOverwrite(ctx, ch.ID, overwrite); err != nil {
		return nil, fmt.Errorf("update channel permissions: %w", err)
	}
	return map[string]any{"channelId": ch.ID, "locked": locked}, nil
}

// everyoneOverwrite returns the channel's @everyone overwrite, or an empty
// one. @everyone shares the guild id.
func everyoneOverwrite(ch *platformx.Channel, guildID string) platformx.PermissionOverwrite {
	for _, ow := range ch.Overwrites {
		if ow.Type == platformx.OverwriteRole && ow.ID == guildID {
			return ow
		}
	}
	return platformx.PermissionOverwrite{ID: guildID, Type: platformx.OverwriteRole}
}
