// Package group holds the group record that the frontend keeps persisted
// between page loads: the selected group with its punishment types and members.
package group

import "time"

type PunishmentType struct {
	PunishmentTypeID int    `json:"punishment_type_id"`
	Name             string `json:"name"`
	Value            int    `json:"value"`
	LogoURL          string `json:"logo_url"`
}

type Punishment struct {
	PunishmentID     int        `json:"punishment_id"`
	PunishmentTypeID int        `json:"punishment_type_id"`
	Reason           string     `json:"reason"`
	Amount           int        `json:"amount"`
	CreatedTime      time.Time  `json:"created_time"`
	CreatedBy        int        `json:"created_by"`
	VerifiedTime     *time.Time `json:"verified_time"`
	VerifiedBy       *int       `json:"verified_by"`
}

// Verified reports whether another member has confirmed the punishment.
func (p Punishment) Verified() bool {
	return p.VerifiedTime != nil
}

type GroupUser struct {
	UserID        int          `json:"user_id"`
	OWUserID      int          `json:"ow_user_id"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Email         *string      `json:"email"`
	OWGroupUserID *int         `json:"ow_group_user_id"`
	Active        bool         `json:"active"`
	Punishments   []Punishment `json:"punishments"`
}

type Group struct {
	GroupID         int              `json:"group_id"`
	OWGroupID       *int             `json:"ow_group_id"`
	Name            string           `json:"name"`
	NameShort       string           `json:"name_short"`
	Rules           string           `json:"rules"`
	Image           string           `json:"image"`
	PunishmentTypes []PunishmentType `json:"punishment_types"`
	Members         []GroupUser      `json:"members"`
}

// Empty returns a group with non-nil slices so it encodes as [] rather than null.
func Empty() Group {
	return Group{
		PunishmentTypes: []PunishmentType{},
		Members:         []GroupUser{},
	}
}

// Member returns the member with the given user id.
func (g Group) Member(userID int) (GroupUser, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupUser{}, false
}

// ActiveMembers returns the members still marked active, in stored order.
func (g Group) ActiveMembers() []GroupUser {
	return g.MembersByActive(true)
}

// MembersByActive returns the members whose active flag equals active, in
// stored order. The result is never nil.
func (g Group) MembersByActive(active bool) []GroupUser {
	result := make([]GroupUser, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Active == active {
			result = append(result, m)
		}
	}
	return result
}

// PunishmentType looks up a punishment type by id.
func (g Group) PunishmentType(id int) (PunishmentType, bool) {
	for _, pt := range g.PunishmentTypes {
		if pt.PunishmentTypeID == id {
			return pt, true
		}
	}
	return PunishmentType{}, false
}

// Debt sums value*amount over the member's punishments whose type is known
// to the group.
func (g Group) Debt(userID int) int {
	m, ok := g.Member(userID)
	if !ok {
		return 0
	}
	total := 0
	for _, p := range m.Punishments {
		pt, ok := g.PunishmentType(p.PunishmentTypeID)
		if !ok {
			continue
		}
		total += pt.Value * p.Amount
	}
	return total
}
