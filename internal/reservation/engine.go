// Package reservation moves individual ticket numbers through their life
// cycle. Every call re-reads the store before acting; the store's unique
// (raffle, number) key is what decides a race, the read is only there to skip
// inserts that are bound to fail.
package reservation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/ticketnum"
	"ms-raffle/internal/ticketspace"
)

type RaffleStore interface {
	GetRaffle(ctx context.Context, id string) (*models.Raffle, error)
}

type TicketStore interface {
	ListTickets(ctx context.Context, raffleID string) ([]models.TicketRecord, error)
	GetTicket(ctx context.Context, raffleID, number string) (*models.TicketRecord, error)
	InsertHeld(ctx context.Context, record models.TicketRecord) (bool, error)
	ConfirmPaid(ctx context.Context, raffleID string, numbers []string, holderID string, paidAt time.Time) (int, error)
	DeleteTicket(ctx context.Context, raffleID, number string) (bool, error)
	DeleteFamily(ctx context.Context, raffleID, number string) (bool, error)
	UpsertFamily(ctx context.Context, raffleID, number, holderID string, at time.Time) error
	ListHeldBefore(ctx context.Context, raffleID string, cutoff time.Time) ([]models.TicketRecord, error)
	DeleteExpiredHold(ctx context.Context, raffleID, number string, cutoff time.Time) (bool, error)
}

type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event models.TicketEvent) error
}

type Engine struct {
	Raffles RaffleStore
	Tickets TicketStore
	Events  EventPublisher
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewEngine(raffles RaffleStore, tickets TicketStore, events EventPublisher, log *logger.Logger) *Engine {
	return &Engine{
		Raffles: raffles,
		Tickets: tickets,
		Events:  events,
		Logger:  log,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Payment is the outcome of a confirmed payment batch.
type Payment struct {
	RaffleID     string          `json:"raffle_id"`
	HolderID     string          `json:"holder_id"`
	Numbers      []string        `json:"numbers"`
	Amount       decimal.Decimal `json:"amount"`
	Expected     decimal.Decimal `json:"expected"`
	Transitioned int             `json:"transitioned"`
}

// View materializes the raffle fresh from the store.
func (e *Engine) View(ctx context.Context, raffleID string) (*ticketspace.View, error) {
	loader := ticketspace.Loader{Raffles: e.Raffles, Records: e.Tickets}
	return loader.Load(ctx, raffleID)
}

// mutableView loads the raffle and refuses when tickets can no longer change.
func (e *Engine) mutableView(ctx context.Context, raffleID string) (*ticketspace.View, error) {
	view, err := e.View(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	switch view.Raffle.Status {
	case models.RaffleFinalized:
		return nil, fmt.Errorf("%w: %s", models.ErrRaffleFinalized, raffleID)
	case models.RaffleCancelled:
		return nil, fmt.Errorf("%w: %s", models.ErrRaffleCancelled, raffleID)
	}
	return view, nil
}

// Reserve holds as many of the requested numbers as it can for holderID.
// Numbers someone else got first come back as taken; numbers the caller
// already holds come back as already_held, so retrying the same call is safe.
// When the store fails partway, the result still lists what was held before
// the failure.
func (e *Engine) Reserve(ctx context.Context, raffleID string, numbers []string, holderID string) (ReserveResult, error) {
	result := ReserveResult{RaffleID: raffleID, HolderID: holderID, Numbers: []NumberResult{}}
	if strings.TrimSpace(holderID) == "" {
		return result, models.ErrHolderRequired
	}

	view, err := e.mutableView(ctx, raffleID)
	if err != nil {
		return result, err
	}

	canonical, invalid := canonicalize(numbers, view.Raffle.TotalTickets)
	for _, raw := range invalid {
		result.add(raw, OutcomeInvalid)
	}

	now := e.Now()
	for _, number := range canonical {
		current, _ := view.Ticket(number)
		switch {
		case current.Status == models.TicketAvailable:
		case ownedBy(current.Status, current.HolderID, holderID):
			result.add(number, OutcomeAlreadyHeld)
			continue
		default:
			result.add(number, OutcomeTaken)
			continue
		}

		inserted, err := e.Tickets.InsertHeld(ctx, models.TicketRecord{
			RaffleID: raffleID,
			Number:   number,
			HolderID: holderID,
			Status:   models.TicketHeld,
			HeldAt:   now,
		})
		if err != nil {
			e.publish(ctx, models.EventTicketsReserved, raffleID, holderID, result.Reserved(), nil)
			return result, fmt.Errorf("reserve %s/%s: %w", raffleID, number, err)
		}
		if inserted {
			result.add(number, OutcomeReserved)
			continue
		}

		// Lost the insert. The row that won may be our own earlier attempt.
		row, err := e.Tickets.GetTicket(ctx, raffleID, number)
		if err == nil && row != nil && ownedBy(row.Status, row.HolderID, holderID) {
			result.add(number, OutcomeAlreadyHeld)
			continue
		}
		result.add(number, OutcomeTaken)
	}

	e.Logger.LogTicket("RESERVE", raffleID, fmt.Sprintf("holder=%s reserved=%v taken=%v invalid=%v",
		holderID, result.Reserved(), result.Taken(), result.Invalid()))
	e.publish(ctx, models.EventTicketsReserved, raffleID, holderID, result.Reserved(), nil)
	return result, nil
}

// ConfirmPayment marks every number of the batch paid, or none of them.
// amount may be lower than the batch total (the rest is tracked by the abono
// ledger) but never higher.
func (e *Engine) ConfirmPayment(ctx context.Context, raffleID string, numbers []string, holderID string, amount decimal.Decimal) (*Payment, error) {
	if strings.TrimSpace(holderID) == "" {
		return nil, models.ErrHolderRequired
	}
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%w: no numbers to confirm", models.ErrInvalidNumber)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAmount, amount)
	}

	view, err := e.mutableView(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	canonical, invalid := canonicalize(numbers, view.Raffle.TotalTickets)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidNumber, strings.Join(invalid, ","))
	}

	expected := view.Raffle.ExpectedTotal(len(canonical))
	if amount.GreaterThan(expected) {
		return nil, fmt.Errorf("%w: %s > %s", models.ErrAmountExceedsTotal, amount, expected)
	}

	for _, number := range canonical {
		current, _ := view.Ticket(number)
		if !ownedBy(current.Status, current.HolderID, holderID) {
			return nil, fmt.Errorf("%w: %s is %s", models.ErrNotHeldByCaller, number, current.Status)
		}
	}

	transitioned, err := e.Tickets.ConfirmPaid(ctx, raffleID, canonical, holderID, e.Now())
	if err != nil {
		return nil, fmt.Errorf("confirm payment %s: %w", raffleID, err)
	}

	e.Logger.LogTicket("PAYMENT", raffleID, fmt.Sprintf("holder=%s numbers=%v amount=%s transitioned=%d",
		holderID, canonical, amount, transitioned))
	if transitioned > 0 {
		e.publish(ctx, models.EventTicketsPaid, raffleID, holderID, canonical, &amount)
	}

	return &Payment{
		RaffleID:     raffleID,
		HolderID:     holderID,
		Numbers:      canonical,
		Amount:       amount,
		Expected:     expected,
		Transitioned: transitioned,
	}, nil
}

// Release frees a held, paid or family number. Releasing an available number
// does nothing.
func (e *Engine) Release(ctx context.Context, raffleID, number string) error {
	view, err := e.mutableView(ctx, raffleID)
	if err != nil {
		return err
	}
	formatted, err := ticketnum.Canonical(number, view.Raffle.TotalTickets)
	if err != nil {
		return err
	}

	current, _ := view.Ticket(formatted)
	if current.Status == models.TicketAvailable {
		return nil
	}
	if err := CheckTransition(formatted, current.Status, models.TicketAvailable); err != nil {
		return err
	}

	deleted, err := e.Tickets.DeleteTicket(ctx, raffleID, formatted)
	if err != nil {
		return fmt.Errorf("release %s/%s: %w", raffleID, formatted, err)
	}
	if deleted {
		e.Logger.LogTicket("RELEASE", raffleID, fmt.Sprintf("%s released from %s (holder=%s)", formatted, current.Status, current.HolderID))
		e.publish(ctx, models.EventTicketsReleased, raffleID, current.HolderID, []string{formatted}, nil)
	}
	return nil
}

// MarkFamily gives a number away outside the payment flow.
func (e *Engine) MarkFamily(ctx context.Context, raffleID, number, holderID string) error {
	view, err := e.mutableView(ctx, raffleID)
	if err != nil {
		return err
	}
	formatted, err := ticketnum.Canonical(number, view.Raffle.TotalTickets)
	if err != nil {
		return err
	}

	current, _ := view.Ticket(formatted)
	if err := CheckTransition(formatted, current.Status, models.TicketFamily); err != nil {
		return err
	}
	if current.Status == models.TicketFamily && current.HolderID == holderID {
		return nil
	}

	if err := e.Tickets.UpsertFamily(ctx, raffleID, formatted, holderID, e.Now()); err != nil {
		return fmt.Errorf("mark family %s/%s: %w", raffleID, formatted, err)
	}
	e.Logger.LogTicket("FAMILY", raffleID, fmt.Sprintf("%s moved from %s to family", formatted, current.Status))
	e.publish(ctx, models.EventTicketsFamily, raffleID, holderID, []string{formatted}, nil)
	return nil
}

// UnmarkFamily returns a family number to the pool. Only family numbers can
// leave this way.
func (e *Engine) UnmarkFamily(ctx context.Context, raffleID, number string) error {
	view, err := e.mutableView(ctx, raffleID)
	if err != nil {
		return err
	}
	formatted, err := ticketnum.Canonical(number, view.Raffle.TotalTickets)
	if err != nil {
		return err
	}

	current, _ := view.Ticket(formatted)
	switch current.Status {
	case models.TicketAvailable:
		return nil
	case models.TicketFamily:
	default:
		return fmt.Errorf("%w: %s is %s, not family", models.ErrInvalidTransition, formatted, current.Status)
	}

	deleted, err := e.Tickets.DeleteFamily(ctx, raffleID, formatted)
	if err != nil {
		return fmt.Errorf("unmark family %s/%s: %w", raffleID, formatted, err)
	}
	if !deleted {
		row, err := e.Tickets.GetTicket(ctx, raffleID, formatted)
		if err != nil {
			return err
		}
		if row != nil {
			return fmt.Errorf("%w: %s changed to %s", models.ErrInvalidTransition, formatted, row.Status)
		}
		return nil
	}
	e.publish(ctx, models.EventTicketsReleased, raffleID, current.HolderID, []string{formatted}, nil)
	return nil
}

// ReleaseExpired frees the holds of a raffle older than its hold window and
// returns the numbers it released.
func (e *Engine) ReleaseExpired(ctx context.Context, raffle models.Raffle) ([]string, error) {
	if raffle.HoldHours <= 0 || !raffle.AcceptsMutations() {
		return nil, nil
	}
	cutoff := e.Now().Add(-time.Duration(raffle.HoldHours) * time.Hour)

	expired, err := e.Tickets.ListHeldBefore(ctx, raffle.ID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired holds of %s: %w", raffle.ID, err)
	}

	released := make([]string, 0, len(expired))
	byHolder := make(map[string][]string)
	for _, rec := range expired {
		deleted, err := e.Tickets.DeleteExpiredHold(ctx, raffle.ID, rec.Number, cutoff)
		if err != nil {
			return released, fmt.Errorf("release expired hold %s/%s: %w", raffle.ID, rec.Number, err)
		}
		if deleted {
			released = append(released, rec.Number)
			byHolder[rec.HolderID] = append(byHolder[rec.HolderID], rec.Number)
		}
	}

	for holder, nums := range byHolder {
		e.publish(ctx, models.EventTicketsReleased, raffle.ID, holder, nums, nil)
	}
	if len(released) > 0 {
		e.Logger.LogTicket("EXPIRE", raffle.ID, fmt.Sprintf("released %d expired holds: %v", len(released), released))
	}
	return released, nil
}

func (e *Engine) publish(ctx context.Context, eventType models.TicketEventType, raffleID, holderID string, numbers []string, amount *decimal.Decimal) {
	if e.Events == nil || len(numbers) == 0 {
		return
	}
	event := models.NewTicketEvent(eventType, raffleID, holderID, numbers)
	event.Amount = amount
	if err := e.Events.PublishTicketEvent(ctx, event); err != nil {
		e.Logger.Error("EVENTS", fmt.Sprintf("Failed to publish %s for raffle %s: %v", eventType, raffleID, err))
	}
}

func ownedBy(status models.TicketStatus, holder, caller string) bool {
	return holder == caller && (status == models.TicketHeld || status == models.TicketPaid)
}

// canonicalize formats the requested numbers, drops duplicates and orders
// them ascending. Numbers that are not part of the raffle come back apart.
func canonicalize(numbers []string, total int) ([]string, []string) {
	seen := make(map[int]struct{}, len(numbers))
	ints := make([]int, 0, len(numbers))
	var invalid []string
	for _, raw := range numbers {
		n, err := ticketnum.Parse(raw, total)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		ints = append(ints, n)
	}
	sort.Ints(ints)

	out := make([]string, len(ints))
	for i, n := range ints {
		out[i], _ = ticketnum.Format(n, total)
	}
	return out, invalid
}
