package engage

import (
	"github.com/tribeapp/tribe-server/internal/model"
)

// Scoring adjustments. Baseline weight is 1.0 for every type; adjustments
// multiply so missing signals leave the baseline untouched.
const (
	baseWeight = 1.0

	highResponseBoost   = 1.5 // response rate > 70%
	mediumResponseBoost = 1.2 // response rate > 50%
	lowResponsePenalty  = 0.7 // response rate < 30%

	lowFrictionBoost    = 1.3 // low-activity tribes, easy-entry types
	highCommitPenalty   = 0.6 // low-activity tribes, demanding types
	highActivityBoost   = 1.3 // high-activity tribes, demanding types
	repeatPenalty       = 0.5 // most recently used type
	meetupScheduledCut  = 0.1 // a meetup is already on the calendar
	meetupOverdueBoost  = 1.4 // no meetup in 21+ days
	meetupOverdueAfterD = 21.0

	lowActivityBelow  = 5.0  // messages per day
	highActivityAbove = 20.0 // messages per day
)

// Signals is everything the recommender looks at. Zero values are valid:
// with no history every type keeps its baseline weight.
type Signals struct {
	// ResponseRates maps engagement type to its historical response rate in
	// [0,1]. Types with no delivered history are simply absent.
	ResponseRates map[model.EngagementType]float64
	// ActivityLevel is the tribe's recent messages per day.
	ActivityLevel float64
	// LastType is the most recently created engagement type, or empty.
	LastType model.EngagementType
	// HasScheduledMeetup is true when a meetup engagement is pending.
	HasScheduledMeetup bool
	// DaysSinceMeetup is days since the last delivered meetup, nil when no
	// meetup has ever occurred.
	DaysSinceMeetup *float64
}

// Score computes the weight of every engagement type for the given signals.
// Pure and deterministic.
func Score(sig Signals) map[model.EngagementType]float64 {
	w := make(map[model.EngagementType]float64, len(model.EngagementTypes))
	for _, t := range model.EngagementTypes {
		w[t] = baseWeight
	}

	for t, rate := range sig.ResponseRates {
		switch {
		case rate > 0.7:
			w[t] *= highResponseBoost
		case rate > 0.5:
			w[t] *= mediumResponseBoost
		case rate < 0.3:
			w[t] *= lowResponsePenalty
		}
	}

	switch {
	case sig.ActivityLevel < lowActivityBelow:
		w[model.EngagementConversationPrompt] *= lowFrictionBoost
		w[model.EngagementPollQuestion] *= lowFrictionBoost
		w[model.EngagementGroupChallenge] *= highCommitPenalty
	case sig.ActivityLevel > highActivityAbove:
		w[model.EngagementGroupChallenge] *= highActivityBoost
		w[model.EngagementMeetupSuggestion] *= highActivityBoost
	}

	if sig.LastType != "" {
		if _, ok := w[sig.LastType]; ok {
			w[sig.LastType] *= repeatPenalty
		}
	}

	if sig.HasScheduledMeetup {
		w[model.EngagementMeetupSuggestion] *= meetupScheduledCut
	} else if sig.DaysSinceMeetup != nil && *sig.DaysSinceMeetup >= meetupOverdueAfterD {
		w[model.EngagementMeetupSuggestion] *= meetupOverdueBoost
	}

	return w
}

// Recommend returns the single highest-weighted engagement type. Ties break
// by the fixed enumeration order of model.EngagementTypes.
func Recommend(sig Signals) model.EngagementType {
	w := Score(sig)
	best := model.EngagementTypes[0]
	for _, t := range model.EngagementTypes[1:] {
		if w[t] > w[best] {
			best = t
		}
	}
	return best
}
