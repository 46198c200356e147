package action

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

type memberRoleChange struct {
	UserID   string `json:"userId"`
	RoleID   string `json:"roleId"`
	RoleName string `json:"roleName"`
}

var memberRoleResponse = []Field{
	str("userId", "Member the role changed on.", nil),
	str("roleId", "Role id.", nil),
	str("roleName", "Role name.", nil),
}

func roleActions() []builtin {
	return []builtin{
		{
			decl: Declaration{
				Name:        "createRole",
				Description: "Create a new role in the server. Requires Manage Roles.",
				Parameters: []Field{
					required(str("name", "Role name.", "Event Team")),
					integer("color", "RGB color as an integer.", 3447003),
					boolean("hoist", "Show members separately in the member list.", false),
					boolean("mentionable", "Allow anyone to mention the role.", true),
				},
				Response: []Field{
					str("id", "New role id.", nil),
					str("name", "Role name.", nil),
					integer("position", "Hierarchy position.", nil),
				},
			},
			exec: createRole,
		},
		{
			decl: Declaration{
				Name:        "deleteRole",
				Description: "Delete a role that sits below your highest role. Requires Manage Roles.",
				Parameters: []Field{
					required(str("roleId", "Role to delete.", "556677889900112233")),
				},
				Response: []Field{
					str("id", "Deleted role id.", nil),
					str("name", "Deleted role name.", nil),
					boolean("deleted", "Always true.", nil),
				},
			},
			exec: deleteRole,
		},
		{
			decl: Declaration{
				Name:        "addRoleToMember",
				Description: "Give a role to another member. Requires Manage Roles and a higher role than the one given.",
				Parameters: []Field{
					required(str("userId", "Member receiving the role.", "998877665544332211")),
					required(str("roleId", "Role to give.", "556677889900112233")),
				},
				Response: memberRoleResponse,
			},
			exec: changeMemberRole(true),
		},
		{
			decl: Declaration{
				Name:        "removeRoleFromMember",
				Description: "Take a role away from another member. Requires Manage Roles and a higher role than the one removed.",
				Parameters: []Field{
					required(str("userId", "Member losing the role.", "998877665544332211")),
					required(str("roleId", "Role to remove.", "556677889900112233")),
				},
				Response: memberRoleResponse,
			},
			exec: changeMemberRole(false),
		},
	}
}

func createRole(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageRoles, "create roles"); err != nil {
		return nil, err
	}
	name := p.String("name")
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: role name must be 1 to 100 characters", contractx.ErrValidation)
	}
	color := p.Int("color")
	if color < 0 || color > 0xFFFFFF {
		return nil, fmt.Errorf("%w: color must be between 0 and 16777215", contractx.ErrValidation)
	}
	role, err := ec.Platform.CreateRole(ctx, sc.guildID(), platformx.RoleParams{
		Name:        name,
		Color:       int(color),
		Hoist:       p.Bool("hoist"),
		Mentionable: p.Bool("mentionable"),
	})
	if err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	return map[string]any{"id": role.ID, "name": role.Name, "position": role.Position}, nil
}

func deleteRole(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sc.member, platformx.PermManageRoles, "delete roles"); err != nil {
		return nil, err
	}
	role, err := manageableRole(ctx, ec, sc, p.String("roleId"))
	if err != nil {
		return nil, err
	}
	if err := ec.Platform.DeleteRole(ctx, sc.guildID(), role.ID); err != nil {
		return nil, fmt.Errorf("delete role: %w", err)
	}
	return map[string]any{"id": role.ID, "name": role.Name, "deleted": true}, nil
}

func changeMemberRole(add bool) Executor {
	verb := "remove roles from"
	if add {
		verb = "add roles to"
	}
	return func(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		sc, err := loadScope(ctx, ec)
		if err != nil {
			return nil, err
		}
		if err := requirePermission(sc.member, platformx.PermManageRoles, verb+" members"); err != nil {
			return nil, err
		}
		userID := p.String("userId")
		if err := preventSelf(ec, userID, verb); err != nil {
			return nil, err
		}
		role, err := manageableRole(ctx, ec, sc, p.String("roleId"))
		if err != nil {
			return nil, err
		}
		target, err := guildMember(ctx, ec, sc, userID)
		if err != nil {
			return nil, err
		}

		switch {
		case add && target.HasRole(role.ID):
			return nil, fmt.Errorf("%w: %s already has the %s role", contractx.ErrValidation, displayName(target), role.Name)
		case !add && !target.HasRole(role.ID):
			return nil, fmt.Errorf("%w: %s does not have the %s role", contractx.ErrValidation, displayName(target), role.Name)
		}

		if add {
			err = ec.Platform.AddMemberRole(ctx, sc.guildID(), target.UserID, role.ID)
		} else {
			err = ec.Platform.RemoveMemberRole(ctx, sc.guildID(), target.UserID, role.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("update member roles: %w", err)
		}
		return memberRoleChange{UserID: target.UserID, RoleID: role.ID, RoleName: role.Name}, nil
	}
}

// manageableRole finds a role the caller may edit: not bot-managed, not
// @everyone and strictly below the caller's highest role.
func manageableRole(ctx context.Context, ec contractx.ExecutionContext, sc scope, roleID string) (*platformx.Role, error) {
	if roleID == "" {
		return nil, fmt.Errorf("%w: a role id is required", contractx.ErrValidation)
	}
	if roleID == sc.guildID() {
		return nil, fmt.Errorf("%w: the @everyone role cannot be changed", contractx.ErrValidation)
	}
	role, err := guildRole(ctx, ec, sc, roleID)
	if err != nil {
		return nil, err
	}
	if role.Managed {
		return nil, fmt.Errorf("%w: %s is managed by an integration", contractx.ErrValidation, role.Name)
	}
	if !sc.member.Outranks(role.Position) {
		return nil, fmt.Errorf("%w: %s is not below your highest role", contractx.ErrPermission, role.Name)
	}
	return role, nil
}
