package dashboard

import (
	"fmt"

	"example.com/bufferproxy/internal/models"
)

const demoUserID = "u1"

func (s *Service) demoProfiles() []models.Profile {
	created := s.now().Unix()
	return []models.Profile{
		{
			ID:                "1",
			FormattedService:  "Twitter",
			FormattedUsername: "@AntigravityDev",
			Service:           "twitter",
			CreatedAt:         created,
			Default:           true,
			Schedules:         []models.Schedule{},
			ServiceID:         "s1",
			ServiceUsername:   "antigravity",
			Statistics:        models.ProfileStatistics{Followers: 1200},
			Timezone:          "UTC",
			UserID:            demoUserID,
		},
		{
			ID:                "2",
			FormattedService:  "LinkedIn",
			FormattedUsername: "Google Antigravity",
			Service:           "linkedin",
			CreatedAt:         created,
			Schedules:         []models.Schedule{},
			ServiceID:         "s2",
			ServiceUsername:   "antigravity_li",
			Statistics:        models.ProfileStatistics{Followers: 500},
			Timezone:          "UTC",
			UserID:            demoUserID,
		},
	}
}

func (s *Service) demoUpdates(tab Tab, profileID string) []models.Update {
	now := float64(s.now().Unix())

	if tab == TabHistory {
		const text = "Just released a new update for Antigravity! #dev #ai"
		const picture = "https://picsum.photos/seed/antigravity/400/300"
		return []models.Update{{
			ID:             fmt.Sprintf("mock-sent-%s", s.newID()),
			ProfileID:      profileID,
			ProfileService: "twitter",
			Text:           text,
			TextFormatted:  text,
			CreatedAt:      now - 3600,
			DueAt:          now - 3600,
			SentAt:         now - 3600,
			Status:         models.StatusSent,
			UserID:         demoUserID,
			Via:            "api",
			ServiceLink:    "https://twitter.com",
			Media:          &models.Media{Picture: picture, Thumbnail: picture},
			Statistics:     &models.UpdateStatistics{Clicks: 42, Retweets: 5, Favorites: 12, Reach: 1500},
		}}
	}

	const text = "Upcoming: Deep dive into Agentic Workflows."
	return []models.Update{{
		ID:             fmt.Sprintf("mock-pending-%s", s.newID()),
		ProfileID:      profileID,
		ProfileService: "twitter",
		Text:           text,
		TextFormatted:  text,
		CreatedAt:      now,
		DueAt:          now + 86400,
		Status:         models.StatusBuffer,
		UserID:         demoUserID,
		Via:            "api",
		Media:          &models.Media{Picture: "https://picsum.photos/seed/agentic/400/300"},
	}}
}

func (s *Service) demoCompose(opts models.CreateUpdateOptions) *models.UpdateResponse {
	now := float64(s.now().Unix())
	resp := &models.UpdateResponse{Success: true, Message: msgComposedDemo}
	for _, id := range opts.ProfileIDs {
		resp.Updates = append(resp.Updates, models.Update{
			ID:            fmt.Sprintf("mock-sent-%s", s.newID()),
			ProfileID:     id,
			Text:          opts.Text,
			TextFormatted: opts.Text,
			CreatedAt:     now,
			DueAt:         now,
			SentAt:        now,
			Status:        models.StatusSent,
			UserID:        demoUserID,
			Via:           "api",
			Media:         opts.Media,
		})
	}
	return resp
}
