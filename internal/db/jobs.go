package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opencruit/crawler/internal/ingest"
)

// -----------------------------------------------------------------------------
// Canonical Job Methods
// -----------------------------------------------------------------------------

const jobColumns = `id, source_id, external_id, url, title, company, company_logo_url,
	location, is_remote, description, tags, salary_min, salary_max, salary_currency,
	posted_at, apply_url, fingerprint, content_hash, status,
	first_seen_at, last_seen_at, last_checked_at, next_check_at, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.SourceID, &j.ExternalID, &j.URL, &j.Title, &j.Company,
		&j.CompanyLogoURL, &j.Location, &j.IsRemote, &j.Description, &j.Tags,
		&j.SalaryMin, &j.SalaryMax, &j.SalaryCurrency, &j.PostedAt, &j.ApplyURL,
		&j.Fingerprint, &j.ContentHash, &j.Status,
		&j.FirstSeenAt, &j.LastSeenAt, &j.LastCheckedAt, &j.NextCheckAt,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJobByExternalID retrieves a job by its (source, external) key.
// Returns nil without error when no row exists.
func (db *DB) GetJobByExternalID(ctx context.Context, sourceID, externalID string) (*Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_id = $1 AND external_id = $2`,
		sourceID, externalID,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job %s:%s: %w", sourceID, externalID, err)
	}
	return j, nil
}

// JobsByFingerprint returns every job matching any of the given fingerprints,
// ordered by creation time ascending so the earliest owner sorts first.
func (db *DB) JobsByFingerprint(ctx context.Context, fingerprints []string) ([]ingest.FingerprintOwner, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT fingerprint, source_id, id FROM jobs
		 WHERE fingerprint = ANY($1)
		 ORDER BY created_at ASC, id ASC`,
		fingerprints,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by fingerprint: %w", err)
	}
	defer rows.Close()

	var owners []ingest.FingerprintOwner
	for rows.Next() {
		var o ingest.FingerprintOwner
		if err := rows.Scan(&o.Fingerprint, &o.SourceID, &o.ID); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fingerprint owners: %w", err)
	}
	return owners, nil
}

// UpsertPostings writes the batch in a single multi-row statement keyed on
// (source_id, external_id). Existing rows keep the later of the stored and
// incoming next_check_at so the recheck schedule only moves forward.
func (db *DB) UpsertPostings(ctx context.Context, upserts []ingest.UpsertRow) (int, error) {
	if len(upserts) == 0 {
		return 0, nil
	}

	const cols = 18
	var sb strings.Builder
	args := make([]any, 0, len(upserts)*cols)

	sb.WriteString(`INSERT INTO jobs (source_id, external_id, url, title, company,
		company_logo_url, location, is_remote, description, tags,
		salary_min, salary_max, salary_currency, posted_at, apply_url,
		fingerprint, content_hash, next_check_at,
		first_seen_at, last_seen_at, last_checked_at)
		VALUES `)

	for i, row := range upserts {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * cols
		sb.WriteByte('(')
		for p := 1; p <= cols; p++ {
			if p > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+p)
		}
		sb.WriteString(", NOW(), NOW(), NOW())")

		p := row.Posting
		var salaryMin, salaryMax *int
		var salaryCurrency *string
		if p.Salary != nil {
			salaryMin = p.Salary.Min
			salaryMax = p.Salary.Max
			salaryCurrency = nullableString(p.Salary.Currency)
		}
		args = append(args,
			p.SourceID, p.ExternalID, p.URL, p.Title, p.Company,
			nullableString(p.CompanyLogoURL), nullableString(p.Location), p.IsRemote,
			p.Description, p.Tags,
			salaryMin, salaryMax, salaryCurrency, p.PostedAt, nullableString(p.ApplyURL),
			row.Fingerprint, row.ContentHash, row.NextCheckAt,
		)
	}

	sb.WriteString(`
		ON CONFLICT (source_id, external_id) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			company_logo_url = EXCLUDED.company_logo_url,
			location = EXCLUDED.location,
			is_remote = EXCLUDED.is_remote,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			salary_currency = EXCLUDED.salary_currency,
			posted_at = EXCLUDED.posted_at,
			apply_url = EXCLUDED.apply_url,
			fingerprint = EXCLUDED.fingerprint,
			content_hash = EXCLUDED.content_hash,
			status = 'active',
			last_seen_at = NOW(),
			last_checked_at = NOW(),
			next_check_at = GREATEST(jobs.next_check_at, EXCLUDED.next_check_at),
			updated_at = NOW()`)

	tag, err := db.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %d postings: %w", len(upserts), err)
	}
	return int(tag.RowsAffected()), nil
}

// TouchJob updates lifecycle status and check timestamps without rewriting
// content, used when a recheck found the posting unchanged.
func (db *DB) TouchJob(ctx context.Context, sourceID, externalID, status string, nextCheckAt time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $3, last_seen_at = NOW(), last_checked_at = NOW(),
		     next_check_at = $4, updated_at = NOW()
		 WHERE source_id = $1 AND external_id = $2`,
		sourceID, externalID, status, nextCheckAt,
	)
	if err != nil {
		return fmt.Errorf("failed to touch job %s:%s: %w", sourceID, externalID, err)
	}
	return nil
}

// MarkJobMissing records that the source no longer serves the posting.
// last_seen_at is left alone so GC ages the row from its last sighting.
func (db *DB) MarkJobMissing(ctx context.Context, sourceID, externalID string, recheckIn time.Duration) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'missing', last_checked_at = NOW(), next_check_at = NOW() + $3,
		     updated_at = NOW()
		 WHERE source_id = $1 AND external_id = $2`,
		sourceID, externalID, recheckIn,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s:%s missing: %w", sourceID, externalID, err)
	}
	return nil
}

// LeaseDueForRefresh selects up to limit active jobs of one source whose
// recheck is due and advances their next_check_at by the lease in the same
// statement, so concurrent refresh runs never hand out the same job twice.
func (db *DB) LeaseDueForRefresh(ctx context.Context, sourceID string, limit int, lease time.Duration) ([]JobRef, error) {
	rows, err := db.pool.Query(ctx,
		`WITH due AS (
		     SELECT id FROM jobs
		     WHERE source_id = $1 AND status = 'active' AND next_check_at <= NOW()
		     ORDER BY next_check_at ASC
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 UPDATE jobs SET next_check_at = NOW() + $3, updated_at = NOW()
		 FROM due WHERE jobs.id = due.id
		 RETURNING jobs.source_id, jobs.external_id`,
		sourceID, limit, lease,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lease jobs for refresh: %w", err)
	}
	defer rows.Close()

	var refs []JobRef
	for rows.Next() {
		var ref JobRef
		if err := rows.Scan(&ref.SourceID, &ref.ExternalID); err != nil {
			return nil, fmt.Errorf("failed to scan refresh candidate: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read refresh candidates: %w", err)
	}
	return refs, nil
}

// ArchiveStaleJobs archives active jobs not seen for olderThan and schedules
// their next recheck recheckIn from now. Returns the number archived.
func (db *DB) ArchiveStaleJobs(ctx context.Context, sourceID string, olderThan, recheckIn time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'archived', last_checked_at = NOW(), next_check_at = NOW() + $3, updated_at = NOW()
		 WHERE source_id = $1 AND status = 'active' AND COALESCE(last_seen_at, updated_at) < NOW() - $2`,
		sourceID, olderThan, recheckIn,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale jobs for %s: %w", sourceID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStaleJobs removes archived and missing jobs not rechecked for
// olderThan. Returns the number deleted.
func (db *DB) DeleteStaleJobs(ctx context.Context, sourceID string, olderThan time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM jobs
		 WHERE source_id = $1 AND status IN ('archived', 'missing')
		   AND COALESCE(last_checked_at, updated_at) < NOW() - $2`,
		sourceID, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale jobs for %s: %w", sourceID, err)
	}
	return tag.RowsAffected(), nil
}

// DistinctJobSources returns every source_id that has at least one stored job.
func (db *DB) DistinctJobSources(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT DISTINCT source_id FROM jobs ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list job sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan job source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// CountJobsByStatus returns per-(source, status) row counts.
func (db *DB) CountJobsByStatus(ctx context.Context) ([]JobStatusCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT source_id, status, COUNT(*) FROM jobs GROUP BY source_id, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	var counts []JobStatusCount
	for rows.Next() {
		var c JobStatusCount
		if err := rows.Scan(&c.SourceID, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job counts: %w", err)
	}
	return counts, nil
}

// CountJobsFirstSeenSince counts jobs first ingested at or after the cutoff.
func (db *DB) CountJobsFirstSeenSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE first_seen_at >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count new jobs: %w", err)
	}
	return count, nil
}
