package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shelfmatch/backend/internal/domain"
)

// UpsertStageRecords writes candidate audit rows for a pipeline stage inside
// one transaction. The (detection_id, candidate_key, stage) key makes the
// write idempotent: re-running a stage updates the existing rows instead of
// duplicating them. A failure rolls back the whole batch.
func (s *Store) UpsertStageRecords(ctx context.Context, records []domain.StageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorageWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stage_records (
            detection_id, candidate_key, stage,
            name, brand, size, category, image_ref, raw,
            match_status, confidence, similarity, reason, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(detection_id, candidate_key, stage) DO UPDATE SET
            name = excluded.name,
            brand = excluded.brand,
            size = excluded.size,
            category = excluded.category,
            image_ref = excluded.image_ref,
            raw = excluded.raw,
            match_status = excluded.match_status,
            confidence = excluded.confidence,
            similarity = excluded.similarity,
            reason = excluded.reason,
            updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %v", domain.ErrStorageWriteFailed, err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		updatedAt := r.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}

		var raw interface{}
		if len(r.Raw) > 0 {
			raw = string(r.Raw)
		}

		_, err := stmt.ExecContext(ctx,
			r.DetectionID, r.CandidateKey, string(r.Stage),
			r.Name, nullableString(r.Brand), nullableString(r.Size),
			nullableString(r.Category), nullableString(r.ImageRef), raw,
			nullableStatus(r.Status), r.Confidence, r.Similarity,
			nullableString(r.Reason), formatTime(updatedAt),
		)
		if err != nil {
			return fmt.Errorf("%w: upsert stage record %s/%s/%s: %v",
				domain.ErrStorageWriteFailed, r.DetectionID, r.CandidateKey, r.Stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorageWriteFailed, err)
	}
	return nil
}

// FunnelForDetection reconstructs the candidate funnel for one detection
// from its stage records: every candidate at every stage it passed through.
func (s *Store) FunnelForDetection(ctx context.Context, detectionID string) (*domain.Funnel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT detection_id, candidate_key, stage,
                name, brand, size, category, image_ref, raw,
                match_status, confidence, similarity, reason, updated_at
         FROM stage_records
         WHERE detection_id = ?
         ORDER BY stage, candidate_key`, detectionID)
	if err != nil {
		return nil, fmt.Errorf("query stage records: %w", err)
	}
	defer rows.Close()

	funnel := &domain.Funnel{
		DetectionID: detectionID,
		Counts:      make(map[domain.Stage]int),
		Records:     make(map[domain.Stage][]domain.StageRecord),
	}

	for rows.Next() {
		var r domain.StageRecord
		var stage string
		var brand, size, category, imageRef, raw, status, reason sql.NullString
		var confidence, similarity sql.NullFloat64
		var updatedAt string

		err := rows.Scan(
			&r.DetectionID, &r.CandidateKey, &stage,
			&r.Name, &brand, &size, &category, &imageRef, &raw,
			&status, &confidence, &similarity, &reason, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stage record: %w", err)
		}

		r.Stage = domain.Stage(stage)
		r.Brand = stringOrEmpty(brand)
		r.Size = stringOrEmpty(size)
		r.Category = stringOrEmpty(category)
		r.ImageRef = stringOrEmpty(imageRef)
		r.Reason = stringOrEmpty(reason)
		if raw.Valid {
			r.Raw = []byte(raw.String)
		}
		if status.Valid {
			st := domain.MatchStatus(status.String)
			r.Status = &st
		}
		if confidence.Valid {
			v := confidence.Float64
			r.Confidence = &v
		}
		if similarity.Valid {
			v := similarity.Float64
			r.Similarity = &v
		}
		if ts, err := parseTime(updatedAt); err == nil {
			r.UpdatedAt = ts
		}

		funnel.Records[r.Stage] = append(funnel.Records[r.Stage], r)
		funnel.Counts[r.Stage]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage records: %w", err)
	}

	return funnel, nil
}

func nullableStatus(status *domain.MatchStatus) interface{} {
	if status == nil {
		return nil
	}
	return string(*status)
}
