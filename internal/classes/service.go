package classes

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
)

// CreateParams carries everything needed to provision a class.
type CreateParams struct {
	Kind            models.ClassKind
	Audience        string
	Scope           string
	Time            models.TimeRange
	Tags            json.RawMessage
	Host            *string
	Reserve         *int
	PreserveHistory bool
	LockedChat      bool
}

// Store is the persistence surface the service needs; *Repository implements
// it.
type Store interface {
	Create(ctx context.Context, cl *models.Class) error
	UpdateTime(ctx context.Context, id uuid.UUID, t models.TimeRange) (*models.Class, error)
	Recreate(ctx context.Context, id, conferenceRoomID, eventRoomID uuid.UUID, t models.TimeRange) (*models.Class, error)
}

// Service provisions classes: it creates the backing conference and event
// rooms and persists the class row.
type Service struct {
	repo       Store
	conference clients.ConferenceClient
	event      clients.EventClient
	logger     *zap.Logger
}

// NewService creates a class provisioning service.
func NewService(repo Store, conference clients.ConferenceClient, event clients.EventClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, conference: conference, event: event, logger: logger}
}

// rtcSharingPolicy maps a class kind to its conference room policy: minigroup
// participants each publish their own stream, the other kinds share one.
func rtcSharingPolicy(kind models.ClassKind) string {
	if kind == models.ClassKindMinigroup {
		return "owned"
	}
	return "shared"
}

// Create provisions both rooms in parallel and inserts the class.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Class, error) {
	var conferenceRoomID, eventRoomID uuid.UUID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.conference.CreateRoom(gctx, p.Time, p.Audience, rtcSharingPolicy(p.Kind), p.Reserve, p.Tags)
		if err != nil {
			return err
		}
		conferenceRoomID = id
		return nil
	})
	g.Go(func() error {
		id, err := s.event.CreateRoom(gctx, p.Time, p.Audience, p.PreserveHistory, p.Tags)
		if err != nil {
			return err
		}
		eventRoomID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.LockedChat {
		// Best effort: a class with an unlocked chat is usable, so a failure
		// here must not fail the create.
		if err := s.event.LockChat(ctx, eventRoomID); err != nil {
			s.logger.Warn("failed to lock chat",
				zap.String("event_room_id", eventRoomID.String()), zap.Error(err))
		}
	}

	cl := &models.Class{
		Kind:             p.Kind,
		Scope:            p.Scope,
		Audience:         p.Audience,
		Time:             p.Time,
		Tags:             p.Tags,
		Host:             p.Host,
		ConferenceRoomID: conferenceRoomID,
		EventRoomID:      eventRoomID,
		PreserveHistory:  p.PreserveHistory,
		Reserve:          p.Reserve,
	}
	if err := s.repo.Create(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

// Recreate provisions fresh rooms for an existing class and wipes its
// recordings, so the session can be held again from scratch.
func (s *Service) Recreate(ctx context.Context, cl *models.Class, t models.TimeRange) (*models.Class, error) {
	var conferenceRoomID, eventRoomID uuid.UUID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.conference.CreateRoom(gctx, t, cl.Audience, rtcSharingPolicy(cl.Kind), cl.Reserve, cl.Tags)
		if err != nil {
			return err
		}
		conferenceRoomID = id
		return nil
	})
	g.Go(func() error {
		id, err := s.event.CreateRoom(gctx, t, cl.Audience, cl.PreserveHistory, cl.Tags)
		if err != nil {
			return err
		}
		eventRoomID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.repo.Recreate(ctx, cl.ID, conferenceRoomID, eventRoomID, t)
}

// UpdateTime moves the class schedule and propagates it to both rooms.
func (s *Service) UpdateTime(ctx context.Context, cl *models.Class, t models.TimeRange) (*models.Class, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.conference.UpdateRoom(gctx, cl.ConferenceRoomID, t) })
	g.Go(func() error { return s.event.UpdateRoom(gctx, cl.EventRoomID, t) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.repo.UpdateTime(ctx, cl.ID, t)
}
