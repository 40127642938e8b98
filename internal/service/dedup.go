// internal/service/dedup.go
package service

import (
	"strings"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// NormalizeAddress lower-cases and trims an address. Returns "" for entries
// that cannot be delivered (empty or missing an @).
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || !strings.Contains(addr, "@") {
		return ""
	}
	return addr
}

// Deduplicate expands a campaign's target list plus explicit to/cc/bcc lists
// into exactly one role-tagged task per distinct normalized address.
//
// Targets that also appear in any explicit list are dropped here and picked
// up with their explicit role instead. Across the explicit lists the first
// occurrence wins, in the order to, cc, bcc.
func Deduplicate(campaignID string, targets, to, cc, bcc []string) []model.RecipientTask {
	excluded := make(map[string]struct{})
	for _, list := range [][]string{to, cc, bcc} {
		for _, addr := range list {
			if n := NormalizeAddress(addr); n != "" {
				excluded[n] = struct{}{}
			}
		}
	}

	seen := make(map[string]struct{})
	tasks := []model.RecipientTask{}

	emit := func(addr string, role model.Role) {
		n := NormalizeAddress(addr)
		if n == "" {
			return
		}
		if _, dup := seen[n]; dup {
			return
		}
		seen[n] = struct{}{}
		tasks = append(tasks, model.RecipientTask{
			CampaignID: campaignID,
			Email:      n,
			Role:       role,
		})
	}

	for _, addr := range targets {
		n := NormalizeAddress(addr)
		if n == "" {
			continue
		}
		if _, ok := excluded[n]; ok {
			continue
		}
		emit(n, model.RoleNone)
	}
	for _, addr := range to {
		emit(addr, model.RoleTo)
	}
	for _, addr := range cc {
		emit(addr, model.RoleCC)
	}
	for _, addr := range bcc {
		emit(addr, model.RoleBCC)
	}

	return tasks
}

// NormalizeList normalizes a header list, dropping invalid entries and
// duplicates while preserving order.
func NormalizeList(addrs []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, addr := range addrs {
		n := NormalizeAddress(addr)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
