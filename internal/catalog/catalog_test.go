package catalog

import (
	"errors"
	"testing"

	"github.com/BTreeMap/ClarityRoom/internal/models"
)

func TestThemesCoverAllMoods(t *testing.T) {
	got := Themes()
	if len(got) != 5 {
		t.Fatalf("expected 5 moods, got %d", len(got))
	}
	for _, m := range Moods() {
		th, ok := got[m]
		if !ok {
			t.Errorf("mood %q missing from catalog", m)
			continue
		}
		if len(th.Prompts) == 0 {
			t.Errorf("mood %q has no prompts", m)
		}
		if th.Emoji == "" || th.Color == "" || th.Accent == "" {
			t.Errorf("mood %q has incomplete theme: %+v", m, th)
		}
		if th.Mood != m {
			t.Errorf("theme for %q reports mood %q", m, th.Mood)
		}
	}
}

func TestThemesReturnsCopies(t *testing.T) {
	first := Themes()
	first[models.MoodHappy].Prompts[0] = "tampered"
	delete(first, models.MoodSad)

	second := Themes()
	if second[models.MoodHappy].Prompts[0] == "tampered" {
		t.Error("mutating a returned prompt slice leaked into the catalog")
	}
	if _, ok := second[models.MoodSad]; !ok {
		t.Error("deleting from a returned map leaked into the catalog")
	}
}

func TestLookupUnknownMood(t *testing.T) {
	if _, err := Lookup(models.Mood("bored")); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestContains(t *testing.T) {
	if !Contains(models.MoodAngry, "What triggered this anger?") {
		t.Error("expected angry prompt to be found")
	}
	if Contains(models.MoodHappy, "What triggered this anger?") {
		t.Error("angry prompt must not belong to happy")
	}
}
