// Package mockdata loads an optional YAML fixture file of seed users,
// prompts, and call windows for USE_MOCKS=1 local dev and CI (spec §6:
// "local dev and CI run against mocks end to end"), grounded on the
// retrieved corpus's gopkg.in/yaml.v3 fixture-loading convention
// (MrWong99-glyphoxa's internal/entity/yamlloader.go).
package mockdata

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentplexus/reflectcall/internal/models"
)

// Fixture is the top-level shape of a mock seed file.
//
// Example:
//
//	users:
//	  - user_id: user-1
//	    phone_number: "+15551234567"
//	    display_name: "Dana"
//	    timezone: "America/Los_Angeles"
//	    include_rating_prompt: true
//	    max_retries: 3
//	    prompts:
//	      - prompt_id: p1
//	        prompt_text: "What's one thing that went well today?"
//	        position: 1
//	    windows:
//	      - variant: recurring
//	        day_of_week: 1
//	        start_time: "20:00"
//	        end_time: "21:00"
type Fixture struct {
	Users []UserFixture `yaml:"users"`
}

// UserFixture is one seeded user, their prompts, and their call windows.
type UserFixture struct {
	UserID              string           `yaml:"user_id"`
	PhoneNumber         string           `yaml:"phone_number"`
	DisplayName         string           `yaml:"display_name"`
	NamePronunciation   string           `yaml:"name_pronunciation"`
	Timezone            string           `yaml:"timezone"`
	IncludeRatingPrompt bool             `yaml:"include_rating_prompt"`
	MaxRetries          int              `yaml:"max_retries"`
	Prompts             []PromptFixture  `yaml:"prompts"`
	Windows             []WindowFixture  `yaml:"windows"`
}

// PromptFixture is one entry of a user's ordered prompt set.
type PromptFixture struct {
	PromptID       string `yaml:"prompt_id"`
	PromptText     string `yaml:"prompt_text"`
	Position       int    `yaml:"position"`
	IsRatingPrompt bool   `yaml:"is_rating_prompt"`
}

// WindowFixture is one call window, recurring or one-off.
type WindowFixture struct {
	Variant   string `yaml:"variant"` // "recurring" or "one_off"
	DayOfWeek int    `yaml:"day_of_week"`
	Date      string `yaml:"date"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

// Load reads and parses a mock seed file from disk. A missing path is not
// an error: it returns an empty Fixture so USE_MOCKS=1 works with zero
// configuration.
func Load(path string) (*Fixture, error) {
	if path == "" {
		return &Fixture{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Fixture{}, nil
		}
		return nil, fmt.Errorf("mockdata: open fixture %q: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses mock seed YAML from r.
func LoadFromReader(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err == io.EOF {
		return &Fixture{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("mockdata: decode fixture yaml: %w", err)
	}
	return &fx, nil
}

// seedableStore is the subset of memory.Store's non-interface seeding
// helpers mockdata needs; kept as a local interface so this package never
// imports internal/store/memory's full surface.
type seedableStore interface {
	SeedProfile(p models.Profile)
	SeedPrompts(userID string, prompts []models.PromptTemplate)
}

// callWindowStore is the store.Store slice mockdata needs to materialize
// fixture windows, which (unlike Profiles/PromptTemplates) has a public
// Create method on the portable interface.
type callWindowStore interface {
	CreateCallWindow(ctx context.Context, w *models.CallWindow) error
}

// SeedInto populates st with every user, prompt, and call window in fx.
// Call windows are created through the portable store.Store interface;
// profiles and prompts go through the memory-only Seed* helpers, since
// those collections have no Create method on store.Store (spec/DESIGN.md:
// they are owned externally in production).
func SeedInto(ctx context.Context, fx *Fixture, st interface {
	seedableStore
	callWindowStore
}) error {
	for _, u := range fx.Users {
		st.SeedProfile(models.Profile{
			UserID:              u.UserID,
			PhoneNumber:         u.PhoneNumber,
			DisplayName:         u.DisplayName,
			NamePronunciation:   u.NamePronunciation,
			Timezone:            u.Timezone,
			IncludeRatingPrompt: u.IncludeRatingPrompt,
			MaxRetries:          u.MaxRetries,
		})

		prompts := make([]models.PromptTemplate, 0, len(u.Prompts))
		for _, p := range u.Prompts {
			prompts = append(prompts, models.PromptTemplate{
				UserID:         u.UserID,
				PromptID:       p.PromptID,
				PromptText:     p.PromptText,
				Position:       p.Position,
				Active:         true,
				IsRatingPrompt: p.IsRatingPrompt,
			})
		}
		st.SeedPrompts(u.UserID, prompts)

		for _, w := range u.Windows {
			cw := &models.CallWindow{
				ID:        u.UserID + "-" + w.StartTime + "-" + w.Variant,
				UserID:    u.UserID,
				StartTime: w.StartTime,
				EndTime:   w.EndTime,
			}
			if w.Variant == "one_off" {
				cw.Variant = models.WindowOneOff
				cw.Date = w.Date
			} else {
				cw.Variant = models.WindowRecurring
				cw.DayOfWeek = models.DayOfWeek(w.DayOfWeek)
			}
			if err := st.CreateCallWindow(ctx, cw); err != nil {
				return fmt.Errorf("mockdata: create call window for %s: %w", u.UserID, err)
			}
		}
	}
	return nil
}
