package engage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tribeapp/tribe-server/internal/model"
)

func TestScore_BaselineWithNoSignals(t *testing.T) {
	// Low activity is the zero value, so easy-entry types get boosted and
	// the challenge gets cut even with no history at all.
	w := Score(Signals{})
	assert.InDelta(t, 1.3, w[model.EngagementConversationPrompt], 1e-9)
	assert.InDelta(t, 1.3, w[model.EngagementPollQuestion], 1e-9)
	assert.InDelta(t, 0.6, w[model.EngagementGroupChallenge], 1e-9)
	assert.InDelta(t, 1.0, w[model.EngagementActivitySuggestion], 1e-9)
	assert.InDelta(t, 1.0, w[model.EngagementMeetupSuggestion], 1e-9)
}

func TestScore_ResponseRateBands(t *testing.T) {
	sig := Signals{
		ActivityLevel: 10, // neutral band
		ResponseRates: map[model.EngagementType]float64{
			model.EngagementConversationPrompt: 0.8,
			model.EngagementPollQuestion:       0.6,
			model.EngagementGroupChallenge:     0.2,
			model.EngagementActivitySuggestion: 0.4, // no adjustment band
		},
	}
	w := Score(sig)
	assert.InDelta(t, 1.5, w[model.EngagementConversationPrompt], 1e-9)
	assert.InDelta(t, 1.2, w[model.EngagementPollQuestion], 1e-9)
	assert.InDelta(t, 0.7, w[model.EngagementGroupChallenge], 1e-9)
	assert.InDelta(t, 1.0, w[model.EngagementActivitySuggestion], 1e-9)
}

func TestScore_HighActivityFavorsCommitment(t *testing.T) {
	w := Score(Signals{ActivityLevel: 25})
	assert.InDelta(t, 1.3, w[model.EngagementGroupChallenge], 1e-9)
	assert.InDelta(t, 1.3, w[model.EngagementMeetupSuggestion], 1e-9)
	assert.InDelta(t, 1.0, w[model.EngagementConversationPrompt], 1e-9)
}

func TestScore_RepeatPenalty(t *testing.T) {
	w := Score(Signals{ActivityLevel: 10, LastType: model.EngagementPollQuestion})
	assert.InDelta(t, 0.5, w[model.EngagementPollQuestion], 1e-9)
}

func TestScore_MeetupSignals(t *testing.T) {
	// A scheduled meetup nearly zeroes further suggestions.
	w := Score(Signals{ActivityLevel: 10, HasScheduledMeetup: true})
	assert.InDelta(t, 0.1, w[model.EngagementMeetupSuggestion], 1e-9)

	// Overdue boost applies once 21 days have passed since the last meetup.
	days := 30.0
	w = Score(Signals{ActivityLevel: 10, DaysSinceMeetup: &days})
	assert.InDelta(t, 1.4, w[model.EngagementMeetupSuggestion], 1e-9)

	// A recent meetup leaves the baseline alone.
	days = 5.0
	w = Score(Signals{ActivityLevel: 10, DaysSinceMeetup: &days})
	assert.InDelta(t, 1.0, w[model.EngagementMeetupSuggestion], 1e-9)

	// Never having met does not count as overdue.
	w = Score(Signals{ActivityLevel: 10})
	assert.InDelta(t, 1.0, w[model.EngagementMeetupSuggestion], 1e-9)

	// When a meetup is scheduled the cut wins over the overdue boost.
	days = 40.0
	w = Score(Signals{ActivityLevel: 10, HasScheduledMeetup: true, DaysSinceMeetup: &days})
	assert.InDelta(t, 0.1, w[model.EngagementMeetupSuggestion], 1e-9)
}

func TestRecommend_TieBreaksByEnumOrder(t *testing.T) {
	// Neutral activity and no history puts every type at the baseline; the
	// first enumerated type wins.
	got := Recommend(Signals{ActivityLevel: 10})
	assert.Equal(t, model.EngagementConversationPrompt, got)
}

func TestRecommend_QuietTribeGetsEasyEntry(t *testing.T) {
	// A quiet tribe that just had a conversation prompt should rotate to the
	// poll, the other low-friction type.
	got := Recommend(Signals{ActivityLevel: 2, LastType: model.EngagementConversationPrompt})
	assert.Equal(t, model.EngagementPollQuestion, got)
}

func TestRecommend_OverdueMeetupWins(t *testing.T) {
	days := 45.0
	got := Recommend(Signals{ActivityLevel: 10, DaysSinceMeetup: &days})
	assert.Equal(t, model.EngagementMeetupSuggestion, got)
}
