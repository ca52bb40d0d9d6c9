package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/ticketspace"
)

type LogStore interface {
	ListEntries(ctx context.Context, raffleID string) ([]models.ReminderLogEntry, error)
	Append(ctx context.Context, entry models.ReminderLogEntry) (bool, error)
	Remove(ctx context.Context, raffleID, entryID string) error
	Reset(ctx context.Context, raffleID string) (int, error)
}

// Sender delivers a reminder over whatever channel reaches the holder.
type Sender interface {
	SendReminder(ctx context.Context, req models.ReminderRequest) error
}

type Service struct {
	Loader *ticketspace.Loader
	Log    LogStore
	Sender Sender
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(raffles ticketspace.RaffleReader, records ticketspace.RecordReader, log LogStore, sender Sender, l *logger.Logger) *Service {
	return &Service{
		Loader: &ticketspace.Loader{Raffles: raffles, Records: records},
		Log:    log,
		Sender: sender,
		Logger: l,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListPending materializes the raffle and returns the holders still to remind.
func (s *Service) ListPending(ctx context.Context, raffleID string) ([]models.HolderGroup, error) {
	_, groups, err := s.pending(ctx, raffleID)
	return groups, err
}

func (s *Service) pending(ctx context.Context, raffleID string) (*ticketspace.View, []models.HolderGroup, error) {
	view, err := s.Loader.Load(ctx, raffleID)
	if err != nil {
		return nil, nil, err
	}
	log, err := s.Log.ListEntries(ctx, raffleID)
	if err != nil {
		return nil, nil, fmt.Errorf("list reminder log of %s: %w", raffleID, err)
	}
	return view, Pending(raffleID, view.Tickets, log), nil
}

// Record marks a holder as reminded. Recording the same holder twice is a
// no-op.
func (s *Service) Record(ctx context.Context, raffleID, holderID string) error {
	if strings.TrimSpace(holderID) == "" {
		return models.ErrHolderRequired
	}
	_, err := s.Log.Append(ctx, s.newEntry(raffleID, holderID))
	if err != nil {
		return fmt.Errorf("record reminder %s/%s: %w", raffleID, holderID, err)
	}
	return nil
}

// ResetLog starts a new reminder round for the raffle.
func (s *Service) ResetLog(ctx context.Context, raffleID string) (int, error) {
	n, err := s.Log.Reset(ctx, raffleID)
	if err != nil {
		return 0, fmt.Errorf("reset reminder log of %s: %w", raffleID, err)
	}
	s.Logger.Info("REMINDERS", fmt.Sprintf("Reminder log of raffle %s reset (%d entries)", raffleID, n))
	return n, nil
}

// Send reminds one holder of their held numbers.
func (s *Service) Send(ctx context.Context, raffleID, holderID string) (*models.ReminderRequest, error) {
	return s.SendTo(ctx, raffleID, models.Holder{ID: holderID})
}

// SendTo is Send with the holder's directory details attached to the request.
// The log entry is claimed before the message goes out so two concurrent
// sends cannot both deliver; a failed delivery gives the claim back.
func (s *Service) SendTo(ctx context.Context, raffleID string, holder models.Holder) (*models.ReminderRequest, error) {
	holderID := holder.ID
	view, groups, err := s.pending(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	var group *models.HolderGroup
	for i := range groups {
		if groups[i].HolderID == holderID {
			group = &groups[i]
			break
		}
	}
	if group == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrNotPending, holderID)
	}

	entry := s.newEntry(raffleID, holderID)
	claimed, err := s.Log.Append(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("claim reminder %s/%s: %w", raffleID, holderID, err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: %s already reminded", models.ErrNotPending, holderID)
	}

	req := models.ReminderRequest{
		ID:          entry.EntryID,
		RaffleID:    raffleID,
		HolderID:    holderID,
		HolderName:  holder.Name,
		Contact:     holder.Contact,
		Numbers:     group.Numbers,
		Message:     ComposeMessage(view.Raffle, *group),
		RequestedAt: entry.SentAt,
	}
	if err := s.Sender.SendReminder(ctx, req); err != nil {
		if rmErr := s.Log.Remove(ctx, raffleID, entry.EntryID); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		return nil, fmt.Errorf("send reminder %s/%s: %w", raffleID, holderID, err)
	}

	s.Logger.Info("REMINDERS", fmt.Sprintf("Reminder sent to %s for raffle %s: %v", holderID, raffleID, group.Numbers))
	return &req, nil
}

func (s *Service) newEntry(raffleID, holderID string) models.ReminderLogEntry {
	return models.ReminderLogEntry{
		RaffleID: raffleID,
		HolderID: holderID,
		EntryID:  uuid.NewString(),
		SentAt:   s.Now(),
	}
}

// ComposeMessage renders the reminder text for a holder's held numbers.
func ComposeMessage(raffle *models.Raffle, group models.HolderGroup) string {
	due := raffle.ExpectedTotal(len(group.Numbers))
	noun := "apartado el número"
	if len(group.Numbers) > 1 {
		noun = "apartados los números"
	}
	return fmt.Sprintf("Hola! Tienes %s %s en la rifa %s. Monto pendiente: $%s",
		noun, strings.Join(group.Numbers, ", "), raffle.Name, due.StringFixed(2))
}
