// Package reminders decides who still owes a payment reminder and makes sure
// nobody gets the same reminder twice in one round.
package reminders

import (
	"sort"

	"ms-raffle/internal/models"
)

// Pending groups the held tickets of raffleID by holder and drops holders the
// log has for that raffle; entries of other raffles are ignored. Groups are
// ordered by holder id and numbers ascend within a group.
func Pending(raffleID string, tickets []models.VirtualTicket, log []models.ReminderLogEntry) []models.HolderGroup {
	reminded := make(map[string]struct{}, len(log))
	for _, entry := range log {
		if entry.RaffleID != raffleID {
			continue
		}
		reminded[entry.HolderID] = struct{}{}
	}

	byHolder := make(map[string][]string)
	for _, t := range tickets {
		if t.Status != models.TicketHeld || t.HolderID == "" {
			continue
		}
		if _, ok := reminded[t.HolderID]; ok {
			continue
		}
		byHolder[t.HolderID] = append(byHolder[t.HolderID], t.FormattedNumber)
	}

	groups := make([]models.HolderGroup, 0, len(byHolder))
	for holder, numbers := range byHolder {
		sort.Strings(numbers)
		groups = append(groups, models.HolderGroup{HolderID: holder, Numbers: numbers})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].HolderID < groups[j].HolderID })
	return groups
}
