package action

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
	storex "github.com/tanpawarit/chative-guildbot/agent/store"
)

type levelView struct {
	UserID      string `json:"userId"`
	XP          int64  `json:"xp"`
	Level       int64  `json:"level"`
	XPIntoLevel int64  `json:"xpIntoLevel"`
	XPForNext   int64  `json:"xpForNext"`
	Credits     int64  `json:"credits"`
}

type leaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	XP     int64  `json:"xp"`
	Level  int64  `json:"level"`
}

func levelingActions(deps Dependencies) []builtin {
	levels := deps.Levels
	return []builtin{
		{
			decl: Declaration{
				Name:        "getUserLevel",
				Description: "Get a member's level, experience and credits. Defaults to the requesting user.",
				Parameters: []Field{
					str("userId", "Member to look up.", "998877665544332211"),
				},
				Response: []Field{
					str("userId", "Member id.", nil),
					integer("xp", "Total experience.", nil),
					integer("level", "Current level.", nil),
					integer("xpIntoLevel", "Experience earned inside the current level.", nil),
					integer("xpForNext", "Experience the current level needs in total.", nil),
					integer("credits", "Credit balance.", nil),
				},
			},
			exec: getUserLevel(levels),
		},
		{
			decl: Declaration{
				Name:        "getLeaderboard",
				Description: "Get the members with the most experience.",
				Parameters: []Field{
					integer("limit", "Number of entries, 1 to 25.", 10),
				},
				Response: []Field{
					list("entries", "Ranked members.", object("entry", "",
						integer("rank", "1-based rank.", nil),
						str("userId", "Member id.", nil),
						integer("xp", "Total experience.", nil),
						integer("level", "Current level.", nil),
					)),
					integer("count", "Number of entries returned.", nil),
				},
			},
			exec: getLeaderboard(levels),
		},
		{
			decl: Declaration{
				Name:        "addXp",
				Description: "Award experience to another member. Requires Manage Server.",
				Parameters: []Field{
					required(str("userId", "Member receiving experience.", "998877665544332211")),
					required(integer("amount", "Experience to add, at least 1 and at most the server's award limit.", 250)),
				},
				Response: []Field{
					str("userId", "Member id.", nil),
					integer("xp", "New total experience.", nil),
					integer("level", "New level.", nil),
					boolean("leveledUp", "Whether the award crossed a level.", nil),
				},
			},
			exec: addXP(levels),
		},
		{
			decl: Declaration{
				Name:        "addCredits",
				Description: "Award credits to another member. Requires Manage Server.",
				Parameters: []Field{
					required(str("userId", "Member receiving credits.", "998877665544332211")),
					required(integer("amount", "Credits to add, at least 1 and at most the server's award limit.", 100)),
				},
				Response: []Field{
					str("userId", "Member id.", nil),
					integer("credits", "New credit balance.", nil),
				},
			},
			exec: addCredits(levels),
		},
	}
}

func requireLeveling(ec contractx.ExecutionContext) error {
	if !ec.Settings.LevelingEnabled {
		return fmt.Errorf("leveling is disabled on this server")
	}
	return nil
}

func getUserLevel(levels LevelStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		if err := requireLeveling(ec); err != nil {
			return nil, err
		}
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		userID := p.StringOr("userId", ec.UserID)
		if userID != ec.UserID {
			if _, err := guildMember(ctx, ec, sc, userID); err != nil {
				return nil, err
			}
		}
		stats, err := levels.MemberStats(ctx, sc.guildID(), userID)
		if err != nil {
			return nil, fmt.Errorf("load member stats: %w", err)
		}
		lvl := stats.Level()
		return levelView{
			UserID:      userID,
			XP:          stats.XP,
			Level:       lvl.Level,
			XPIntoLevel: lvl.XPIntoLevel,
			XPForNext:   lvl.XPForNext,
			Credits:     stats.Credits,
		}, nil
	}
}

func getLeaderboard(levels LevelStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		if err := requireLeveling(ec); err != nil {
			return nil, err
		}
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		limit := limitBetween(p.Int("limit"), 10, 1, 25)
		rows, err := levels.Leaderboard(ctx, sc.guildID(), int(limit))
		if err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
		out := make([]leaderboardEntry, 0, len(rows))
		for i := range rows {
			out = append(out, leaderboardEntry{
				Rank:   i + 1,
				UserID: rows[i].UserID,
				XP:     rows[i].XP,
				Level:  rows[i].Level().Level,
			})
		}
		return map[string]any{"entries": out, "count": len(out)}, nil
	}
}

// awardTarget applies the checks shared by experience and credit awards.
func awardTarget(ctx context.Context, ec contractx.ExecutionContext, p Params, verb string) (scope, *platformx.Member, int64, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return scope{}, nil, 0, err
	}
	if err := requirePermission(sc.member, platformx.PermManageGuild, verb); err != nil {
		return scope{}, nil, 0, err
	}
	userID := p.String("userId")
	if err := preventSelf(ec, userID, verb); err != nil {
		return scope{}, nil, 0, err
	}
	amount := p.Int("amount")
	if limit := ec.Settings.AwardLimit(); amount < 1 || amount > limit {
		return scope{}, nil, 0, fmt.Errorf("%w: amount must be between 1 and %d", contractx.ErrValidation, limit)
	}
	target, err := guildMember(ctx, ec, sc, userID)
	if err != nil {
		return scope{}, nil, 0, err
	}
	if target.Bot {
		return scope{}, nil, 0, fmt.Errorf("%w: bots cannot receive awards", contractx.ErrValidation)
	}
	return sc, target, amount, nil
}

func addXP(levels LevelStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		if err := requireLeveling(ec); err != nil {
			return nil, err
		}
		sc, target, amount, err := awardTarget(ctx, ec, p, "award experience to")
		if err != nil {
			return nil, err
		}
		before := storex.LevelForXP(0)
		if current, err := levels.MemberStats(ctx, sc.guildID(), target.UserID); err == nil {
			before = current.Level()
		}
		stats, err := levels.AddXP(ctx, sc.guildID(), target.UserID, amount)
		if err != nil {
			return nil, fmt.Errorf("add experience: %w", err)
		}
		after := stats.Level()
		return map[string]any{
			"userId":    target.UserID,
			"xp":        stats.XP,
			"level":     after.Level,
			"leveledUp": after.Level > before.Level,
		}, nil
	}
}

func addCredits(levels LevelStore) Executor {
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, target, amount, err := awardTarget(ctx, ec, p, "award credits to")
		if err != nil {
			return nil, err
		}
		stats, err := levels.AddCredits(ctx, sc.guildID(), target.UserID, amount)
		if err != nil {
			return nil, fmt.Errorf("add credits: %w", err)
		}
		return map[string]any{"userId": target.UserID, "credits": stats.Credits}, nil
	}
}
