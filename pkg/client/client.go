package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buildcamp/progression-engine/internal/models"
)

// Client is a Go SDK for the progression-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new progression-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// envelope is the standard API response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateProject creates a project at the idea stage
func (c *Client) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	var project models.Project
	if err := c.call(ctx, "POST", "/api/v1/projects", req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject retrieves a project with its members
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/projects/%s", id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// AddMember adds a user to a project
func (c *Client) AddMember(ctx context.Context, projectID string, req models.AddMemberRequest) (*models.ProjectMember, error) {
	var member models.ProjectMember
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/projects/%s/members", projectID), req, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// CheckAdvancement reports whether a project may advance and what is missing
func (c *Client) CheckAdvancement(ctx context.Context, projectID string) (*models.AdvancementResult, error) {
	var result models.AdvancementResult
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/projects/%s/advancement", projectID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Advance moves a project to the next stage if its criteria are met
func (c *Client) Advance(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/projects/%s/advance", projectID), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// SetStage writes a project stage directly (administrative override)
func (c *Client) SetStage(ctx context.Context, projectID string, req models.SetStageRequest) (*models.Project, error) {
	var project models.Project
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/projects/%s/stage", projectID), req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListStageTransitions retrieves a project's stage audit trail
func (c *Client) ListStageTransitions(ctx context.Context, projectID string, limit int) ([]*models.StageTransition, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/transitions", projectID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var data struct {
		Transitions []*models.StageTransition `json:"transitions"`
		Total       int                       `json:"total"`
	}
	if err := c.call(ctx, "GET", path, nil, &data); err != nil {
		return nil, err
	}
	return data.Transitions, nil
}

// CreateQuest registers a quest
func (c *Client) CreateQuest(ctx context.Context, quest models.Quest) (*models.Quest, error) {
	var created models.Quest
	if err := c.call(ctx, "POST", "/api/v1/quests", quest, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AssignQuest assigns a quest to an owner (idempotent)
func (c *Client) AssignQuest(ctx context.Context, questID string, req models.AssignQuestRequest) (*models.QuestAssignment, error) {
	var assignment models.QuestAssignment
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/quests/%s/assign", questID), req, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// GetAssignment retrieves the assignment for a (quest, owner) pair
func (c *Client) GetAssignment(ctx context.Context, questID, ownerID string) (*models.QuestAssignment, error) {
	var assignment models.QuestAssignment
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/quests/%s/assignments/%s", questID, ownerID), nil, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// UpdateAssignmentStatus moves an assignment along its lifecycle
func (c *Client) UpdateAssignmentStatus(ctx context.Context, questID, ownerID string, req models.UpdateAssignmentStatusRequest) (*models.QuestAssignment, error) {
	var assignment models.QuestAssignment
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/quests/%s/assignments/%s/status", questID, ownerID), req, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// AssignWeeklyQuests fills a user's backlog with track-eligible quests
func (c *Client) AssignWeeklyQuests(ctx context.Context, userID string, req models.WeeklyAssignRequest) ([]*models.QuestAssignment, error) {
	var data struct {
		Assignments []*models.QuestAssignment `json:"assignments"`
		Total       int                       `json:"total"`
	}
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/users/%s/assignments/weekly", userID), req, &data); err != nil {
		return nil, err
	}
	return data.Assignments, nil
}

// SetTrack records a user's track choice
func (c *Client) SetTrack(ctx context.Context, userID string, track models.Track) (*models.UserSettings, error) {
	var settings models.UserSettings
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/users/%s/track", userID), models.SetTrackRequest{Track: track}, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// RecommendMentors retrieves the ranked mentor list for a user
func (c *Client) RecommendMentors(ctx context.Context, userID string) ([]*models.RankedMentor, error) {
	var data struct {
		Recommendations []*models.RankedMentor `json:"recommendations"`
		Total           int                    `json:"total"`
	}
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/users/%s/mentors", userID), nil, &data); err != nil {
		return nil, err
	}
	return data.Recommendations, nil
}

// UpsertMentorProfile creates or replaces a mentor profile
func (c *Client) UpsertMentorProfile(ctx context.Context, userID string, profile models.MentorProfile) (*models.MentorProfile, error) {
	var mentor models.MentorProfile
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/mentors/%s", userID), profile, &mentor); err != nil {
		return nil, err
	}
	return &mentor, nil
}

// RequestMentorship opens a mentorship request
func (c *Client) RequestMentorship(ctx context.Context, req models.CreateMentorshipRequest) (*models.Mentorship, error) {
	var mentorship models.Mentorship
	if err := c.call(ctx, "POST", "/api/v1/mentorships", req, &mentorship); err != nil {
		return nil, err
	}
	return &mentorship, nil
}

// UpdateMentorshipStatus moves a mentorship along its lifecycle
func (c *Client) UpdateMentorshipStatus(ctx context.Context, id string, status models.MentorshipStatus) (*models.Mentorship, error) {
	var mentorship models.Mentorship
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/mentorships/%s/status", id), models.UpdateMentorshipStatusRequest{Status: status}, &mentorship); err != nil {
		return nil, err
	}
	return &mentorship, nil
}

// ScheduleSession creates a session under an active mentorship
func (c *Client) ScheduleSession(ctx context.Context, mentorshipID string, req models.ScheduleSessionRequest) (*models.MentorshipSession, error) {
	var session models.MentorshipSession
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/mentorships/%s/sessions", mentorshipID), req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// RateSession sets a session rating (write-once)
func (c *Client) RateSession(ctx context.Context, sessionID string, rating int) (*models.MentorshipSession, error) {
	var session models.MentorshipSession
	if err := c.call(ctx, "PUT", fmt.Sprintf("/api/v1/sessions/%s/rating", sessionID), models.RateSessionRequest{Rating: rating}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// call performs a request and unwraps the response envelope into out
func (c *Client) call(ctx context.Context, method, path string, reqBody, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("API error: %s - %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env envelope
		if err := json.Unmarshal(respBody, &env); err == nil && env.Error != nil {
			return nil, fmt.Errorf("API error: %s - %s", env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
