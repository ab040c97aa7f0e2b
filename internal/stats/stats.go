package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Reporter runs read-only aggregate queries for the dashboard endpoint.
// It keeps its own database/sql connection so long-running reporting
// queries never compete with the request-path pool.
type Reporter struct {
	db *sql.DB
}

// Snapshot is the dashboard payload
type Snapshot struct {
	ProjectsByStage   map[string]int `json:"projects_by_stage"`
	VerifiedThisWeek  int            `json:"verified_this_week"`
	ActiveMentorships int            `json:"active_mentorships"`
	MentorUtilization float64        `json:"mentor_utilization"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// NewReporter opens a reporting connection to the given DSN
func NewReporter(dsn string) (*Reporter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open reporting connection: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping reporting connection: %w", err)
	}

	return &Reporter{db: db}, nil
}

// Collect gathers the current dashboard numbers
func (r *Reporter) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		ProjectsByStage: make(map[string]int),
		GeneratedAt:     time.Now().UTC(),
	}

	rows, err := r.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM projects GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects by stage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage count: %w", err)
		}
		snap.ProjectsByStage[stage] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	weekQuery := `
		SELECT COUNT(*)
		FROM quest_assignments
		WHERE status = 'verified' AND submitted_at >= NOW() - INTERVAL '7 days'
	`
	if err := r.db.QueryRowContext(ctx, weekQuery).Scan(&snap.VerifiedThisWeek); err != nil {
		return nil, fmt.Errorf("failed to count verified assignments: %w", err)
	}

	activeQuery := `SELECT COUNT(*) FROM mentorships WHERE status = 'active'`
	if err := r.db.QueryRowContext(ctx, activeQuery).Scan(&snap.ActiveMentorships); err != nil {
		return nil, fmt.Errorf("failed to count active mentorships: %w", err)
	}

	utilQuery := `
		SELECT COALESCE(
		    (SELECT COUNT(*)::float FROM mentorships WHERE status IN ('active', 'paused'))
		    / NULLIF((SELECT SUM(capacity)::float FROM mentor_profiles), 0),
		0)
	`
	if err := r.db.QueryRowContext(ctx, utilQuery).Scan(&snap.MentorUtilization); err != nil {
		return nil, fmt.Errorf("failed to compute mentor utilization: %w", err)
	}

	return snap, nil
}

// Close closes the reporting connection
func (r *Reporter) Close() error {
	return r.db.Close()
}
