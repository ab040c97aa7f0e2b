package policy

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buildcamp/progression-engine/internal/models"
)

// StageCriteria lists the evidence thresholds that gate the transition
// out of one stage. Zero values mean the criterion does not apply.
type StageCriteria struct {
	MinMembers           int           `json:"min_members"`
	RequireSoloPerMember bool          `json:"require_solo_per_member"`
	MinVerifiedTeam      int           `json:"min_verified_team"`
	MinVerifiedTotal     int           `json:"min_verified_total"`
	MaxSubmissionAge     time.Duration `json:"max_submission_age"`
}

// QuestPolicy bounds automatic quest assignment
type QuestPolicy struct {
	// MaxOpenAssignments caps how many not-started or in-progress
	// assignments a user may hold at once.
	MaxOpenAssignments int `json:"max_open_assignments"`
}

// RecommendationPolicy holds the mentor compatibility weights
type RecommendationPolicy struct {
	OverlapWeight  float64 `json:"overlap_weight"`
	RatingWeight   float64 `json:"rating_weight"`
	HeadroomWeight float64 `json:"headroom_weight"`
	TopN           int     `json:"top_n"`
}

// Policy is the full tunable decision table of the progression engine.
// Stages is keyed by the stage a project is leaving.
type Policy struct {
	Stages  map[models.Stage]StageCriteria `json:"stages"`
	Quests  QuestPolicy                    `json:"quests"`
	Mentors RecommendationPolicy           `json:"mentors"`
}

// Default returns the compiled-in policy used when no file is configured
func Default() *Policy {
	month := 30 * 24 * time.Hour

	return &Policy{
		Stages: map[models.Stage]StageCriteria{
			models.StageIdea:       {MinMembers: 1, RequireSoloPerMember: true},
			models.StagePrototype:  {MinVerifiedTeam: 1},
			models.StageBuild:      {MinMembers: 2, MinVerifiedTeam: 3},
			models.StageProject:    {MinVerifiedTotal: 10, MaxSubmissionAge: month},
			models.StageIncubate:   {MinVerifiedTotal: 20, MinMembers: 3},
			models.StageAccelerate: {MinVerifiedTotal: 35, MaxSubmissionAge: month},
		},
		Quests: QuestPolicy{
			MaxOpenAssignments: 5,
		},
		Mentors: RecommendationPolicy{
			OverlapWeight:  0.5,
			RatingWeight:   0.3,
			HeadroomWeight: 0.2,
			TopN:           3,
		},
	}
}

// Criteria returns the criteria gating the transition out of stage
func (p *Policy) Criteria(stage models.Stage) StageCriteria {
	return p.Stages[stage]
}

// Load returns the policy from the given YAML file, with file values
// overriding defaults. An empty path returns the defaults unchanged.
func Load(path string) (*Policy, error) {
	p := Default()

	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	for name, sf := range pf.Stages {
		stage := models.Stage(name)
		if !stage.IsValid() {
			return nil, fmt.Errorf("unknown stage in policy: %q", name)
		}
		if stage.IsTerminal() {
			return nil, fmt.Errorf("stage %q is terminal and takes no criteria", name)
		}

		crit := p.Stages[stage]
		if sf.MinMembers != nil {
			crit.MinMembers = *sf.MinMembers
		}
		if sf.RequireSoloPerMember != nil {
			crit.RequireSoloPerMember = *sf.RequireSoloPerMember
		}
		if sf.MinVerifiedTeam != nil {
			crit.MinVerifiedTeam = *sf.MinVerifiedTeam
		}
		if sf.MinVerifiedTotal != nil {
			crit.MinVerifiedTotal = *sf.MinVerifiedTotal
		}
		if sf.MaxSubmissionAge != "" {
			d, err := time.ParseDuration(sf.MaxSubmissionAge)
			if err != nil {
				return nil, fmt.Errorf("invalid max_submission_age for stage %q: %w", name, err)
			}
			crit.MaxSubmissionAge = d
		}
		p.Stages[stage] = crit
	}

	if pf.Quests.MaxOpenAssignments != nil {
		p.Quests.MaxOpenAssignments = *pf.Quests.MaxOpenAssignments
	}

	if pf.Mentors.OverlapWeight != nil {
		p.Mentors.OverlapWeight = *pf.Mentors.OverlapWeight
	}
	if pf.Mentors.RatingWeight != nil {
		p.Mentors.RatingWeight = *pf.Mentors.RatingWeight
	}
	if pf.Mentors.HeadroomWeight != nil {
		p.Mentors.HeadroomWeight = *pf.Mentors.HeadroomWeight
	}
	if pf.Mentors.TopN != nil {
		p.Mentors.TopN = *pf.Mentors.TopN
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	slog.Info("policy loaded", "path", path, "stages", len(p.Stages))
	return p, nil
}

// Validate checks policy values that would break decisions
func (p *Policy) Validate() error {
	if p.Quests.MaxOpenAssignments < 1 {
		return fmt.Errorf("quests.max_open_assignments must be at least 1")
	}
	if p.Mentors.TopN < 1 {
		return fmt.Errorf("mentors.top_n must be at least 1")
	}
	if p.Mentors.OverlapWeight < 0 || p.Mentors.RatingWeight < 0 || p.Mentors.HeadroomWeight < 0 {
		return fmt.Errorf("mentor weights must not be negative")
	}
	return nil
}

// --- YAML file structs ---

// policyFile represents the YAML structure of a policy file.
// Pointers distinguish "absent" from explicit zeroes.
type policyFile struct {
	Stages  map[string]stageFile `yaml:"stages"`
	Quests  questsFile           `yaml:"quests"`
	Mentors mentorsFile          `yaml:"mentors"`
}

type stageFile struct {
	MinMembers           *int   `yaml:"min_members"`
	RequireSoloPerMember *bool  `yaml:"require_solo_per_member"`
	MinVerifiedTeam      *int   `yaml:"min_verified_team"`
	MinVerifiedTotal     *int   `yaml:"min_verified_total"`
	MaxSubmissionAge     string `yaml:"max_submission_age"`
}

type questsFile struct {
	MaxOpenAssignments *int `yaml:"max_open_assignments"`
}

type mentorsFile struct {
	OverlapWeight  *float64 `yaml:"overlap_weight"`
	RatingWeight   *float64 `yaml:"rating_weight"`
	HeadroomWeight *float64 `yaml:"headroom_weight"`
	TopN           *int     `yaml:"top_n"`
}
