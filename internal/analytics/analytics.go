package analytics

import (
	"context"
	"time"

	"modwarden/internal/moderation"
)

type ActionLister interface {
	ListActions(ctx context.Context, serverID, userID string, since time.Time) ([]moderation.Action, error)
}

type Service struct {
	store ActionLister
}

func New(store ActionLister) *Service {
	return &Service{store: store}
}

type Report struct {
	Total       int
	ByType      map[moderation.ActionType]int
	ByModerator map[string]int
}

// Report summarises a server's mod log since the given time. An empty userID
// covers every member.
func (s *Service) Report(ctx context.Context, serverID, userID string, since time.Time) (Report, error) {
	actions, err := s.store.ListActions(ctx, serverID, userID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ByType:      make(map[moderation.ActionType]int),
		ByModerator: make(map[string]int),
	}
	for _, action := range actions {
		report.Total++
		report.ByType[action.Type]++
		report.ByModerator[action.ModeratorID]++
	}
	return report, nil
}
