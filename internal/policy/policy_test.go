package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildcamp/progression-engine/internal/models"
)

func TestDefaultCoversEveryNonTerminalStage(t *testing.T) {
	p := Default()

	for _, stage := range models.Stages() {
		if stage.IsTerminal() {
			if _, ok := p.Stages[stage]; ok {
				t.Errorf("terminal stage %s should not carry criteria", stage)
			}
			continue
		}
		if _, ok := p.Stages[stage]; !ok {
			t.Errorf("no criteria defined for stage %s", stage)
		}
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if p.Quests.MaxOpenAssignments != 5 {
		t.Errorf("expected default cap 5, got %d", p.Quests.MaxOpenAssignments)
	}
	if p.Mentors.TopN != 3 {
		t.Errorf("expected default top_n 3, got %d", p.Mentors.TopN)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	content := `
stages:
  prototype:
    min_verified_team: 2
  project:
    min_verified_total: 12
    max_submission_age: 168h
quests:
  max_open_assignments: 3
mentors:
  top_n: 5
  rating_weight: 0.4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := p.Criteria(models.StagePrototype).MinVerifiedTeam; got != 2 {
		t.Errorf("expected prototype min_verified_team 2, got %d", got)
	}
	if got := p.Criteria(models.StageProject).MaxSubmissionAge; got != 168*time.Hour {
		t.Errorf("expected project max_submission_age 168h, got %v", got)
	}
	if got := p.Criteria(models.StageProject).MinVerifiedTotal; got != 12 {
		t.Errorf("expected project min_verified_total 12, got %d", got)
	}
	// Untouched stages keep their defaults
	if got := p.Criteria(models.StageIdea).MinMembers; got != 1 {
		t.Errorf("expected idea min_members default 1, got %d", got)
	}
	if p.Quests.MaxOpenAssignments != 3 {
		t.Errorf("expected cap 3, got %d", p.Quests.MaxOpenAssignments)
	}
	if p.Mentors.TopN != 5 {
		t.Errorf("expected top_n 5, got %d", p.Mentors.TopN)
	}
	if p.Mentors.RatingWeight != 0.4 {
		t.Errorf("expected rating_weight 0.4, got %v", p.Mentors.RatingWeight)
	}
	if p.Mentors.OverlapWeight != 0.5 {
		t.Errorf("expected overlap_weight default 0.5, got %v", p.Mentors.OverlapWeight)
	}
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"unknown stage", "stages:\n  flying:\n    min_members: 1\n"},
		{"terminal stage", "stages:\n  scale:\n    min_members: 1\n"},
		{"bad duration", "stages:\n  project:\n    max_submission_age: soon\n"},
		{"zero cap", "quests:\n  max_open_assignments: 0\n"},
		{"negative weight", "mentors:\n  rating_weight: -0.1\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}
