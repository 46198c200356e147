package action

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

const defaultEventLength = time.Hour

func eventActions() []builtin {
	return []builtin{
		{
			decl: Declaration{
				Name:        "createScheduledEvent",
				Description: "Create a server event. Give a voice or stage channelId, or a location for an external event. Requires Manage Events.",
				Parameters: []Field{
					required(str("name", "Event name.", "Game Night")),
					str("description", "Event description.", "Bring your friends"),
					required(str("startTime", "Start time, RFC 3339, must be in the future.", "2026-11-01T19:00:00Z")),
					str("endTime", "End time, RFC 3339, after the start. Defaults to one hour after the start.", "2026-11-01T21:00:00Z"),
					str("location", "Where an external event happens.", "Community hall"),
					str("channelId", "Voice or stage channel hosting the event.", "112233445566778899"),
				},
				Response: []Field{
					str("id", "Event id.", nil),
					str("name", "Event name.", nil),
					str("startTime", "Start time, RFC 3339.", nil),
					str("endTime", "End time, RFC 3339.", nil),
					str("location", "External location, empty for channel events.", nil),
					str("channelId", "Hosting channel, empty for external events.", nil),
				},
			},
			exec: createScheduledEvent,
		},
	}
}

func parseTime(p Params, key string) (time.Time, error) {
	raw := p.String(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 time such as 2026-11-01T19:00:00Z", contractx.ErrValidation, key)
	}
	return t.UTC(), nil
}

func createScheduledEvent(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageEvents, "create events"); err != nil {
		return nil, err
	}
	name := p.String("name")
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: event name must be 1 to 100 characters", contractx.ErrValidation)
	}
	start, err := parseTime(p, "startTime")
	if err != nil {
		return nil, err
	}
	if start.IsZero() || !start.After(ec.Clock()) {
		return nil, fmt.Errorf("%w: startTime must be in the future", contractx.ErrValidation)
	}
	end, err := parseTime(p, "endTime")
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = start.Add(defaultEventLength)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: endTime must be after startTime", contractx.ErrValidation)
	}

	params := platformx.EventParams{
		Name:        name,
		Description: p.String("description"),
		Start:       start,
		End:         end,
	}
	if channelID := p.String("channelId"); channelID != "" {
		ch, err := guildChannel(ctx, ec, sc, channelID)
		if err != nil {
			return nil, err
		}
		if ch.Type != platformx.ChannelVoice && ch.Type != platformx.ChannelStage {
			return nil, fmt.Errorf("%w: events can only be hosted in voice or stage channels", contractx.ErrValidation)
		}
		params.ChannelID = ch.ID
	} else {
		params.Location = p.String("location")
		if params.Location == "" {
			return nil, fmt.Errorf("%w: give either a channelId or a location", contractx.ErrValidation)
		}
	}

	ev, err := ec.Platform.CreateScheduledEvent(ctx, sc.guildID(), params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return map[string]any{
		"id":        ev.ID,
		"name":      ev.Name,
		"startTime": formatTime(ev.StartTime),
		"endTime":   formatTime(ev.EndTime),
		"location":  ev.Location,
		"channelId": ev.ChannelID,
	}, nil
}
