package initialization

import (
	"github.com/bubblelabai/bubblelab/pkg/bubbles/aiagent"
	httpbubble "github.com/bubblelabai/bubblelab/pkg/bubbles/http"
	"github.com/bubblelabai/bubblelab/pkg/bubbles/postgresql"
	"github.com/bubblelabai/bubblelab/pkg/bubbles/redis"
	"github.com/bubblelabai/bubblelab/pkg/bubbles/resend"
	"github.com/bubblelabai/bubblelab/pkg/bubbles/slack"
	"github.com/bubblelabai/bubblelab/pkg/bubbles/telegram"
	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/registry"
)

// bubbleDefinitions is the fixed catalog registered at startup. Adding a new
// bubble means adding its Definition here.
func bubbleDefinitions() []domain.BubbleDefinition {
	return []domain.BubbleDefinition{
		resend.Definition(),
		slack.Definition(),
		telegram.Definition(),
		postgresql.Definition(),
		redis.Definition(),
		httpbubble.Definition(),
		aiagent.Definition(),
	}
}

func RegisterBubbles(reg *registry.Registry) error {
	for _, def := range bubbleDefinitions() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}

	return nil
}
