// Package ticketspace materializes the full ticket inventory of a raffle from
// its sparse persisted rows. Everything here is pure: same input, same output.
package ticketspace

import (
	"sort"

	"ms-raffle/internal/models"
	"ms-raffle/internal/ticketnum"
)

// Materialize returns exactly total tickets. Records are matched by their
// re-formatted number, so a row stored as "5" and one stored as "005" land in
// the same slot; the first one in input order wins. Rows whose number is not
// part of the raffle are ignored.
func Materialize(total int, records []models.TicketRecord) []models.VirtualTicket {
	if total < 0 {
		total = 0
	}
	byNumber := make(map[string]models.TicketRecord, len(records))
	for _, rec := range records {
		key, err := ticketnum.Canonical(rec.Number, total)
		if err != nil {
			continue
		}
		if _, dup := byNumber[key]; dup {
			continue
		}
		byNumber[key] = rec
	}

	width := ticketnum.Width(total)
	tickets := make([]models.VirtualTicket, total)
	for i := 0; i < total; i++ {
		formatted := formatIn(i, width)
		vt := models.VirtualTicket{
			Number:          i,
			FormattedNumber: formatted,
			Status:          models.TicketAvailable,
		}
		if rec, ok := byNumber[formatted]; ok {
			vt.Status = rec.Status
			vt.HolderID = rec.HolderID
		}
		tickets[i] = vt
	}
	return tickets
}

// formatIn avoids the range check of ticketnum.Format inside the hot loop.
func formatIn(i, width int) string {
	buf := make([]byte, width)
	for p := width - 1; p >= 0; p-- {
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	return string(buf)
}

// StatusIndex builds a fresh formatted-number → status map.
func StatusIndex(tickets []models.VirtualTicket) map[string]models.TicketStatus {
	index := make(map[string]models.TicketStatus, len(tickets))
	for _, t := range tickets {
		index[t.FormattedNumber] = t.Status
	}
	return index
}

// Lookup finds the ticket for a formatted number.
func Lookup(tickets []models.VirtualTicket, formatted string) (models.VirtualTicket, bool) {
	total := len(tickets)
	n, err := ticketnum.Parse(formatted, total)
	if err != nil {
		return models.VirtualTicket{}, false
	}
	t := tickets[n]
	if t.FormattedNumber != formatted {
		return models.VirtualTicket{}, false
	}
	return t, true
}

// Filter keeps the tickets in the given status.
func Filter(tickets []models.VirtualTicket, status models.TicketStatus) []models.VirtualTicket {
	out := make([]models.VirtualTicket, 0)
	for _, t := range tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// HolderTickets returns the formatted numbers a holder has in any non-available state.
func HolderTickets(tickets []models.VirtualTicket, holderID string) []string {
	out := make([]string, 0)
	for _, t := range tickets {
		if t.Status != models.TicketAvailable && t.HolderID == holderID {
			out = append(out, t.FormattedNumber)
		}
	}
	return out
}

// Summary is the per-status and per-holder count of a ticket space.
type Summary struct {
	Total     int           `json:"total"`
	Available int           `json:"available"`
	Held      int           `json:"held"`
	Paid      int           `json:"paid"`
	Family    int           `json:"family"`
	ByHolder  []HolderCount `json:"by_holder"`
}

type HolderCount struct {
	HolderID string `json:"holder_id"`
	Held     int    `json:"held"`
	Paid     int    `json:"paid"`
}

func Summarize(tickets []models.VirtualTicket) Summary {
	s := Summary{Total: len(tickets)}
	holders := make(map[string]*HolderCount)
	for _, t := range tickets {
		switch t.Status {
		case models.TicketAvailable:
			s.Available++
			continue
		case models.TicketHeld:
			s.Held++
		case models.TicketPaid:
			s.Paid++
		case models.TicketFamily:
			s.Family++
		}
		if t.HolderID == "" || t.Status == models.TicketFamily {
			continue
		}
		hc, ok := holders[t.HolderID]
		if !ok {
			hc = &HolderCount{HolderID: t.HolderID}
			holders[t.HolderID] = hc
		}
		if t.Status == models.TicketHeld {
			hc.Held++
		} else {
			hc.Paid++
		}
	}

	s.ByHolder = make([]HolderCount, 0, len(holders))
	for _, hc := range holders {
		s.ByHolder = append(s.ByHolder, *hc)
	}
	sort.Slice(s.ByHolder, func(i, j int) bool {
		return s.ByHolder[i].HolderID < s.ByHolder[j].HolderID
	})
	return s
}
