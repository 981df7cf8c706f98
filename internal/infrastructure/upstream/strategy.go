package upstream

import (
	"context"

	"raibridge/internal/domain/model"
)

// Strategy is one way of locating playable stream URLs for a content id.
// An error or an empty slice both mean "nothing from this strategy"; the
// resolver falls through to the next one.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, contentID, userID string) ([]model.StreamCandidate, error)
}

// Strategies returns the extraction strategies in resolution order:
// structured API probes first, HTML scraping second, relinker last.
func Strategies(client *Client, auth *AuthClient) []Strategy {
	return []Strategy{
		NewAPIStrategy(client, auth),
		NewHTMLStrategy(client, auth),
		NewRelinkerStrategy(client, auth),
	}
}
