// Package dashboard implements the admin dashboard operations on top of the
// Buffer client: listing profiles, browsing queued or sent updates for several
// profiles at once and composing a post.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/models"
)

var logg = logger.New()

// Tab selects which updates are listed.
type Tab string

const (
	TabPending Tab = "pending"
	TabHistory Tab = "history"
)

// ParseTab accepts "pending" (also the default for "") and "history".
func ParseTab(s string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case "", TabPending:
		return TabPending, nil
	case TabHistory:
		return TabHistory, nil
	}
	return "", fmt.Errorf("%w: unknown tab %q", ErrInvalidRequest, s)
}

// Attachment is the kind of media attached to a composed post.
type Attachment string

const (
	AttachNone  Attachment = "none"
	AttachImage Attachment = "image"
	AttachLink  Attachment = "link"
)

// ErrInvalidRequest marks caller mistakes; handlers map it to 400.
var ErrInvalidRequest = errors.New("invalid dashboard request")

// Service is stateless apart from its settings; the Buffer client is passed per
// call because every caller may bring its own credential.
type Service struct {
	demo  bool
	now   func() time.Time
	newID func() string
}

// New returns a Service. With demo enabled, failed Buffer calls are answered
// with flagged sample data instead of an error.
func New(demo bool) *Service {
	return &Service{
		demo:  demo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Demo reports whether demo fallbacks are enabled.
func (s *Service) Demo() bool { return s.demo }

type ProfilesResult struct {
	Profiles []models.Profile `json:"profiles"`
	Mock     bool             `json:"mock,omitempty"`
}

// Profiles lists the connected profiles.
func (s *Service) Profiles(ctx context.Context, api BufferAPI) (*ProfilesResult, error) {
	profiles, err := api.GetProfiles(ctx)
	if err != nil {
		if !s.demo {
			return nil, err
		}
		logg.Info("dashboard", "Falling back to demo profiles: "+err.Error())
		return &ProfilesResult{Profiles: s.demoProfiles(), Mock: true}, nil
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return &ProfilesResult{Profiles: profiles}, nil
}

// ProfileUpdates is the outcome for one profile. Error is set when the fetch
// failed and no demo data replaced it.
type ProfileUpdates struct {
	ProfileID string          `json:"profile_id"`
	Updates   []models.Update `json:"updates"`
	Mock      bool            `json:"mock,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Updates fetches the tab for every profile concurrently. Results keep the
// order of profileIDs and one failing profile never affects the others.
func (s *Service) Updates(ctx context.Context, api BufferAPI, tab Tab, profileIDs []string) []ProfileUpdates {
	results := make([]ProfileUpdates, len(profileIDs))

	var wg sync.WaitGroup
	for i, id := range profileIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = s.fetchUpdates(ctx, api, tab, id)
		}(i, id)
	}
	wg.Wait()

	return results
}

func (s *Service) fetchUpdates(ctx context.Context, api BufferAPI, tab Tab, profileID string) ProfileUpdates {
	var (
		list *models.UpdatesList
		err  error
	)
	if tab == TabHistory {
		list, err = api.GetSentUpdates(ctx, profileID, 0, 0)
	} else {
		list, err = api.GetPendingUpdates(ctx, profileID, 0, 0)
	}

	out := ProfileUpdates{ProfileID: profileID, Updates: []models.Update{}}
	switch {
	case err == nil:
		if list != nil && list.Updates != nil {
			out.Updates = list.Updates
		}
	case s.demo:
		logg.Info("dashboard", fmt.Sprintf("Could not fetch %s for %s, using demo data", tab, profileID))
		out.Updates = s.demoUpdates(tab, profileID)
		out.Mock = true
	default:
		logg.Error("dashboard", "Fetching "+string(tab)+" updates failed ["+profileID+"]", err)
		out.Error = err.Error()
	}
	return out
}

// ComposeRequest is the body of a compose call.
type ComposeRequest struct {
	ProfileIDs []string     `json:"profile_ids"`
	Text       string       `json:"text"`
	Attachment Attachment   `json:"attachment"`
	Media      models.Media `json:"media"`
}

// Options validates the request and builds the update to send. The thumbnail
// defaults to the picture; link fields are only kept for link attachments.
func (r ComposeRequest) Options() (models.CreateUpdateOptions, error) {
	var opts models.CreateUpdateOptions
	ids := make([]string, 0, len(r.ProfileIDs))
	for _, id := range r.ProfileIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return opts, fmt.Errorf("%w: select at least one profile", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Text) == "" {
		return opts, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}

	opts = models.CreateUpdateOptions{ProfileIDs: ids, Text: r.Text, Now: true}

	switch r.Attachment {
	case "", AttachNone:
	case AttachImage, AttachLink:
		media := models.Media{Picture: r.Media.Picture, Thumbnail: r.Media.Thumbnail}
		if media.Thumbnail == "" {
			media.Thumbnail = media.Picture
		}
		if r.Attachment == AttachLink {
			media.Link = r.Media.Link
			media.Title = r.Media.Title
			media.Description = r.Media.Description
		}
		if !media.IsZero() {
			opts.Media = &media
		}
	default:
		return opts, fmt.Errorf("%w: unknown attachment %q", ErrInvalidRequest, r.Attachment)
	}
	return opts, nil
}

type ComposeResult struct {
	Response *models.UpdateResponse `json:"response"`
	Message  string                 `json:"message"`
	Mock     bool                   `json:"mock,omitempty"`
}

const (
	msgComposed     = "Post scheduled/sent successfully!"
	msgComposedDemo = "Demo: Post simulated successfully (API key required for real post)"
)

// Compose sends the post to every selected profile.
func (s *Service) Compose(ctx context.Context, api BufferAPI, req ComposeRequest) (*ComposeResult, error) {
	opts, err := req.Options()
	if err != nil {
		return nil, err
	}

	resp, err := api.CreateUpdate(ctx, opts)
	if err != nil {
		if !s.demo {
			return nil, err
		}
		logg.Info("dashboard", "Simulating compose in demo mode: "+err.Error())
		return &ComposeResult{Response: s.demoCompose(opts), Message: msgComposedDemo, Mock: true}, nil
	}
	return &ComposeResult{Response: resp, Message: msgComposed}, nil
}
