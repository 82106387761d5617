package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Role names honored when no explicit IDs are configured.
const (
	sherpaRoleName  = "sherpa assistant"
	founderRoleName = "founder"
)

// Perms answers capability checks against guild membership. Lookups hit the
// session state cache first and fall back to the REST API.
type Perms struct {
	s            *discordgo.Session
	guildID      string
	founderID    string
	sherpaRoleID string
}

func NewPerms(s *discordgo.Session, guildID, founderID, sherpaRoleID string) *Perms {
	return &Perms{s: s, guildID: guildID, founderID: founderID, sherpaRoleID: sherpaRoleID}
}

// IsSherpa reports whether the member carries the sherpa role, by configured
// ID or by role name.
func (p *Perms) IsSherpa(userID string) bool {
	member := p.member(userID)
	if member == nil {
		return false
	}
	for _, rid := range member.Roles {
		if p.sherpaRoleID != "" && rid == p.sherpaRoleID {
			return true
		}
		if role := p.role(rid); role != nil && strings.EqualFold(role.Name, sherpaRoleName) {
			return true
		}
	}
	return false
}

// IsFounder: the configured founder user, the guild owner, a "founder" role,
// or the administrator permission bit.
func (p *Perms) IsFounder(userID string) bool {
	if p.founderID != "" && userID == p.founderID {
		return true
	}
	if g, err := p.s.State.Guild(p.guildID); err == nil && g != nil && g.OwnerID == userID {
		return true
	}
	member := p.member(userID)
	if member == nil {
		return false
	}
	var perms int64
	for _, rid := range member.Roles {
		role := p.role(rid)
		if role == nil {
			continue
		}
		if strings.EqualFold(role.Name, founderRoleName) {
			return true
		}
		perms |= role.Permissions
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (p *Perms) member(userID string) *discordgo.Member {
	if m, err := p.s.State.Member(p.guildID, userID); err == nil && m != nil {
		return m
	}
	m, err := p.s.GuildMember(p.guildID, userID)
	if err != nil {
		return nil
	}
	_ = p.s.State.MemberAdd(m)
	return m
}

func (p *Perms) role(roleID string) *discordgo.Role {
	if r, err := p.s.State.Role(p.guildID, roleID); err == nil && r != nil {
		return r
	}
	roles, err := p.s.GuildRoles(p.guildID)
	if err != nil {
		return nil
	}
	for _, r := range roles {
		if r.ID == roleID {
			return r
		}
	}
	return nil
}
