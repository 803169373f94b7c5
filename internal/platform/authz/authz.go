// Package authz answers whether an actor may use a capability. Identity and roles are
// established upstream; this package only maps roles to capabilities.
package authz

import (
	"strings"
)

type Capability string

const (
	TransactionsRead   Capability = "transactions:read"
	TransactionsWrite  Capability = "transactions:write"
	TransactionsCancel Capability = "transactions:cancel"
	ContractsManage    Capability = "contracts:manage"
	DebtRead           Capability = "debt:read"
	GateLogsRead       Capability = "gate_logs:read"
)

// Actor is the staff member behind an admin request
type Actor struct {
	ID    int64
	Roles []string
}

// DefaultRoles is the role table used when none is configured
func DefaultRoles() map[string][]Capability {
	return map[string][]Capability{
		"admin": {
			TransactionsRead, TransactionsWrite, TransactionsCancel,
			ContractsManage, DebtRead, GateLogsRead,
		},
		"accountant": {TransactionsRead, TransactionsWrite, DebtRead},
		"manager":    {TransactionsRead, ContractsManage, DebtRead, GateLogsRead},
		"security":   {GateLogsRead},
	}
}

type Checker struct {
	roles map[string]map[Capability]struct{}
}

func NewChecker(roles map[string][]Capability) *Checker {
	c := &Checker{roles: make(map[string]map[Capability]struct{}, len(roles))}
	for role, caps := range roles {
		set := make(map[Capability]struct{}, len(caps))
		for _, cp := range caps {
			set[cp] = struct{}{}
		}
		c.roles[strings.ToLower(role)] = set
	}
	return c
}

// Can reports whether any of the actor's roles grants the capability
func (c *Checker) Can(actor Actor, capability Capability) bool {
	for _, role := range actor.Roles {
		if _, ok := c.roles[strings.ToLower(role)][capability]; ok {
			return true
		}
	}
	return false
}

// ParseRoles splits a comma separated role header, dropping blanks
func ParseRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
