package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

const (
	activityWindow = 7 * day
	historyDepth   = 50
)

const day = 24 * time.Hour

// Poster publishes a system message into a tribe's room. Implemented by the
// chat service.
type Poster interface {
	SendSystem(ctx context.Context, tribeID, content string, typ model.MessageType, metadata map[string]interface{}) (*model.Message, error)
}

// Service assembles recommender signals from stored history, picks the next
// engagement, generates its content, and delivers it into the room.
type Service struct {
	store  store.Store
	gen    *SafeGenerator
	poster Poster
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(s store.Store, gen *SafeGenerator, poster Poster, log zerolog.Logger) *Service {
	return &Service{store: s, gen: gen, poster: poster, log: log, now: time.Now}
}

// Recommendation is the outcome of a scoring pass.
type Recommendation struct {
	Type    model.EngagementType             `json:"type"`
	Weights map[model.EngagementType]float64 `json:"weights"`
}

// Recommend scores all engagement types for the tribe. Missing or partial
// history degrades to baseline weights rather than erroring.
func (s *Service) Recommend(ctx context.Context, tribeID string) (*Recommendation, error) {
	if tribeID == "" {
		return nil, fmt.Errorf("tribeId is required: %w", model.ErrValidation)
	}
	if _, err := s.store.Tribes().Get(ctx, tribeID); err != nil {
		return nil, err
	}
	sig := s.signals(ctx, tribeID)
	return &Recommendation{Type: Recommend(sig), Weights: Score(sig)}, nil
}

// CreateEngagement recommends a type, generates content (falling back to
// templates on any generation failure), records the engagement, and posts
// it into the room as an AI prompt message.
func (s *Service) CreateEngagement(ctx context.Context, tribeID string) (*model.EngagementRecord, *model.Message, error) {
	rec, err := s.Recommend(ctx, tribeID)
	if err != nil {
		return nil, nil, err
	}
	tribe, err := s.store.Tribes().Get(ctx, tribeID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.store.Memberships().CountActive(ctx, tribeID)
	if err != nil {
		return nil, nil, err
	}

	tc := TribeContext{
		TribeID:       tribeID,
		Name:          tribe.Name,
		MemberCount:   members,
		ActivityLevel: s.activityLevel(ctx, tribeID),
	}
	content := s.gen.Generate(ctx, rec.Type, tc)

	record, err := s.store.Engagements().Create(ctx, &model.EngagementRecord{
		TribeID: tribeID,
		Type:    rec.Type,
	})
	if err != nil {
		return nil, nil, err
	}

	var msg *model.Message
	if s.poster != nil {
		msg, err = s.poster.SendSystem(ctx, tribeID, content.Title+"\n"+content.Description, model.MessageAIPrompt, map[string]interface{}{
			"engagementId":   record.EngagementID,
			"engagementType": string(rec.Type),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("tribe", tribeID).Msg("engagement prompt message failed")
		} else {
			// Delivery is what feeds response-rate and meetup signals; an
			// undelivered record stays out of both.
			at := s.now().UTC()
			if err := s.store.Engagements().MarkDelivered(ctx, record.EngagementID, at); err != nil {
				s.log.Warn().Err(err).Str("engagement", record.EngagementID).Msg("mark delivered failed")
			} else {
				record.DeliveredAt = &at
			}
		}
	}

	if _, err := s.store.Activities().Append(ctx, &model.Activity{
		TribeID:     tribeID,
		Type:        model.ActivityEngagement,
		Description: fmt.Sprintf("engagement %s created", rec.Type),
		Metadata:    map[string]interface{}{"engagementId": record.EngagementID},
	}); err != nil {
		s.log.Warn().Err(err).Str("tribe", tribeID).Msg("engagement activity append failed")
	}
	return record, msg, nil
}

// RecordResponse counts one member response against an engagement.
func (s *Service) RecordResponse(ctx context.Context, engagementID string) error {
	if engagementID == "" {
		return fmt.Errorf("engagementId is required: %w", model.ErrValidation)
	}
	return s.store.Engagements().RecordResponse(ctx, engagementID)
}

// signals gathers recommender inputs. Every lookup is best-effort: a failed
// or empty read leaves the corresponding signal at its zero value.
func (s *Service) signals(ctx context.Context, tribeID string) Signals {
	sig := Signals{ActivityLevel: s.activityLevel(ctx, tribeID)}

	history, err := s.store.Engagements().ListRecent(ctx, tribeID, historyDepth)
	if err != nil {
		s.log.Warn().Err(err).Str("tribe", tribeID).Msg("engagement history unavailable, using baseline weights")
		history = nil
	}
	if len(history) > 0 {
		// ListRecent is newest-first.
		sig.LastType = history[0].Type
		sig.ResponseRates = responseRates(history)
	}

	if scheduled, err := s.store.Engagements().HasScheduledMeetup(ctx, tribeID); err == nil {
		sig.HasScheduledMeetup = scheduled
	}
	if last, err := s.store.Engagements().LastMeetupAt(ctx, tribeID); err == nil && last != nil {
		d := s.now().UTC().Sub(*last).Hours() / 24
		sig.DaysSinceMeetup = &d
	}
	return sig
}

func (s *Service) activityLevel(ctx context.Context, tribeID string) float64 {
	since := s.now().UTC().Add(-activityWindow)
	n, err := s.store.Messages().CountSince(ctx, tribeID, since)
	if err != nil {
		return 0
	}
	return float64(n) / (activityWindow.Hours() / 24)
}

// responseRates computes, per type, the share of delivered engagements that
// drew at least one response.
func responseRates(history []*model.EngagementRecord) map[model.EngagementType]float64 {
	delivered := make(map[model.EngagementType]int)
	responded := make(map[model.EngagementType]int)
	for _, rec := range history {
		if rec.DeliveredAt == nil {
			continue
		}
		delivered[rec.Type]++
		if rec.ResponseCount > 0 {
			responded[rec.Type]++
		}
	}
	rates := make(map[model.EngagementType]float64, len(delivered))
	for t, n := range delivered {
		rates[t] = float64(responded[t]) / float64(n)
	}
	return rates
}
