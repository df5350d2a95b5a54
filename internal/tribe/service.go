package tribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

const (
	defaultMinMembers = 4
	defaultMaxMembers = 8
)

// Service owns tribe and membership records. Status transitions stay with
// the lifecycle engine; this service only creates the inputs it reacts to.
type Service struct {
	store store.Store
	bus   *events.Bus
	log   zerolog.Logger
}

func NewService(s store.Store, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{store: s, bus: bus, log: log}
}

// Create persists a new FORMING tribe and its creator membership.
func (s *Service) Create(ctx context.Context, name, creatorID string, private bool, minMembers, maxMembers int) (*model.Tribe, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", model.ErrValidation)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("creatorId is required: %w", model.ErrValidation)
	}
	if minMembers <= 0 {
		minMembers = defaultMinMembers
	}
	if maxMembers <= 0 {
		maxMembers = defaultMaxMembers
	}
	if maxMembers < minMembers {
		return nil, fmt.Errorf("maxMembers must be >= minMembers: %w", model.ErrValidation)
	}

	t, err := s.store.Tribes().Create(ctx, &model.Tribe{
		Name:       name,
		Status:     model.TribeForming,
		Private:    private,
		MinMembers: minMembers,
		MaxMembers: maxMembers,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Memberships().Create(ctx, &model.Membership{
		TribeID:  t.TribeID,
		MemberID: creatorID,
		Role:     model.RoleCreator,
		Status:   model.MembershipActive,
	}); err != nil {
		return nil, err
	}

	if _, err := s.store.Activities().Append(ctx, &model.Activity{
		TribeID:     t.TribeID,
		Type:        model.ActivityMemberJoined,
		Description: "tribe created",
		Metadata:    map[string]interface{}{"memberId": creatorID, "role": string(model.RoleCreator)},
	}); err != nil {
		s.log.Warn().Err(err).Str("tribe", t.TribeID).Msg("creation activity append failed")
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, tribeID string) (*model.Tribe, error) {
	return s.store.Tribes().Get(ctx, tribeID)
}

// Join adds an ACTIVE membership. The store enforces the capacity bound and
// (tribe, member) uniqueness, both surfacing as ErrConflict.
func (s *Service) Join(ctx context.Context, tribeID, memberID string) (*model.Membership, error) {
	t, err := s.store.Tribes().Get(ctx, tribeID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TribeDissolved {
		return nil, fmt.Errorf("tribe is dissolved: %w", model.ErrConflict)
	}

	m, err := s.store.Memberships().Create(ctx, &model.Membership{
		TribeID:  tribeID,
		MemberID: memberID,
		Role:     model.RoleMember,
		Status:   model.MembershipActive,
	})
	if err != nil {
		return nil, err
	}

	s.recordMembershipChange(ctx, tribeID, memberID, model.ActivityMemberJoined, "member joined")
	return m, nil
}

// Leave marks the membership LEFT. Lifecycle consequences (a tribe falling
// below its minimum) are picked up by the sweeper via the bus event.
func (s *Service) Leave(ctx context.Context, tribeID, memberID string) error {
	if _, err := s.store.Memberships().Get(ctx, tribeID, memberID); err != nil {
		return err
	}
	if err := s.store.Memberships().UpdateStatus(ctx, tribeID, memberID, model.MembershipLeft); err != nil {
		return err
	}
	s.recordMembershipChange(ctx, tribeID, memberID, model.ActivityMemberLeft, "member left")
	return nil
}

// Members lists the tribe's active memberships.
func (s *Service) Members(ctx context.Context, tribeID string) ([]*model.Membership, error) {
	if _, err := s.store.Tribes().Get(ctx, tribeID); err != nil {
		return nil, err
	}
	return s.store.Memberships().ListActive(ctx, tribeID)
}

// RecentActivity lists the newest activity records for a tribe.
func (s *Service) RecentActivity(ctx context.Context, tribeID string, limit int) ([]*model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := s.store.Tribes().Get(ctx, tribeID); err != nil {
		return nil, err
	}
	return s.store.Activities().ListRecent(ctx, tribeID, limit)
}

func (s *Service) recordMembershipChange(ctx context.Context, tribeID, memberID, activityType, desc string) {
	if err := s.store.Tribes().TouchActivity(ctx, tribeID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("tribe", tribeID).Msg("touch activity failed")
	}
	if _, err := s.store.Activities().Append(ctx, &model.Activity{
		TribeID:     tribeID,
		Type:        activityType,
		Description: desc,
		Metadata:    map[string]interface{}{"memberId": memberID},
	}); err != nil {
		s.log.Warn().Err(err).Str("tribe", tribeID).Msg("membership activity append failed")
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{Kind: events.KindMembershipChange, TribeID: tribeID, MemberID: memberID})
	}
}
