package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/model"
)

// TribeContext is the slice of tribe state handed to the content service.
type TribeContext struct {
	TribeID       string  `json:"tribeId"`
	Name          string  `json:"name"`
	MemberCount   int     `json:"memberCount"`
	ActivityLevel float64 `json:"activityLevel"`
}

// Content is a generated engagement prompt.
type Content struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ContentClient calls the external AI content-generation service.
type ContentClient struct {
	client *resty.Client
}

func NewContentClient(baseURL string, timeout time.Duration) *ContentClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &ContentClient{client: c}
}

func (c *ContentClient) Generate(ctx context.Context, typ model.EngagementType, tc TribeContext) (Content, error) {
	var out Content
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"promptType":   string(typ),
			"tribeContext": tc,
		}).
		SetResult(&out).
		Post("/v1/generate")
	if err != nil {
		return Content{}, err
	}
	if resp.IsError() {
		return Content{}, fmt.Errorf("content service status %d", resp.StatusCode())
	}
	if out.Title == "" && out.Description == "" {
		return Content{}, fmt.Errorf("content service returned empty content")
	}
	return out, nil
}

// Generator produces engagement content for a tribe.
type Generator interface {
	Generate(ctx context.Context, typ model.EngagementType, tc TribeContext) (Content, error)
}

// SafeGenerator wraps a Generator and recovers any failure into
// deterministic template content. Its Generate never returns an error, so
// an unavailable content service is invisible to callers.
type SafeGenerator struct {
	inner Generator
	log   zerolog.Logger
}

func NewSafeGenerator(inner Generator, log zerolog.Logger) *SafeGenerator {
	return &SafeGenerator{inner: inner, log: log}
}

func (g *SafeGenerator) Generate(ctx context.Context, typ model.EngagementType, tc TribeContext) Content {
	if g.inner != nil {
		c, err := g.inner.Generate(ctx, typ, tc)
		if err == nil {
			return c
		}
		g.log.Warn().Err(err).Str("type", string(typ)).Str("tribe", tc.TribeID).Msg("content generation failed, using template fallback")
	}
	return FallbackContent(typ, tc)
}

// FallbackContent returns template-based content for the given type.
func FallbackContent(typ model.EngagementType, tc TribeContext) Content {
	name := tc.Name
	if name == "" {
		name = "your tribe"
	}
	switch typ {
	case model.EngagementConversationPrompt:
		return Content{
			Title:       "Conversation starter",
			Description: fmt.Sprintf("What's the best thing that happened to anyone in %s this week?", name),
		}
	case model.EngagementPollQuestion:
		return Content{
			Title:       "Quick poll",
			Description: "Weekend plans: staying in, going out, or still deciding?",
		}
	case model.EngagementGroupChallenge:
		return Content{
			Title:       "Group challenge",
			Description: fmt.Sprintf("Challenge for %s: everyone shares one photo from their day before Sunday.", name),
		}
	case model.EngagementActivitySuggestion:
		return Content{
			Title:       "Activity idea",
			Description: "Pick a nearby spot none of you have tried and plan a visit together.",
		}
	case model.EngagementMeetupSuggestion:
		return Content{
			Title:       "Time to meet up",
			Description: fmt.Sprintf("It's been a while. Find a time this week for %s to get together.", name),
		}
	default:
		return Content{
			Title:       "Stay connected",
			Description: "Check in with your tribe today.",
		}
	}
}
