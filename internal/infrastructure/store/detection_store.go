package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfmatch/backend/internal/domain"
)

const detectionColumns = `id, image_id, project_id, item_index,
    x1, y1, x2, y2,
    brand, product_name, size, flavor, category,
    brand_confidence, name_confidence, size_confidence, flavor_confidence, category_confidence,
    fully_analyzed, crop_ref,
    selected_key, selected_name, selected_brand, selected_category, selected_image,
    selection_method, matched_at`

// InsertDetection stores a detection produced by the external
// detector/extractor. The matching core never creates detections itself;
// this exists for the ingestion path and tests.
func (s *Store) InsertDetection(ctx context.Context, d *domain.Detection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO detections (
            id, image_id, project_id, item_index,
            x1, y1, x2, y2,
            brand, product_name, size, flavor, category,
            brand_confidence, name_confidence, size_confidence, flavor_confidence, category_confidence,
            fully_analyzed, crop_ref
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ImageID, d.ProjectID, d.ItemIndex,
		d.Region.X1, d.Region.Y1, d.Region.X2, d.Region.Y2,
		nullableString(d.Brand), nullableString(d.ProductName), nullableString(d.Size),
		nullableString(d.Flavor), nullableString(d.Category),
		d.Confidence.Brand, d.Confidence.ProductName, d.Confidence.Size,
		d.Confidence.Flavor, d.Confidence.Category,
		boolToInt(d.FullyAnalyzed), nullableString(d.CropRef),
	)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// GetByID loads a single detection.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Detection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+detectionColumns+` FROM detections WHERE id = ?`, id)

	d, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDetectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get detection: %w", err)
	}
	return d, nil
}

// ListEligibleByImage returns detections in an image that have extracted
// attributes and no outcome yet.
func (s *Store) ListEligibleByImage(ctx context.Context, imageID string) ([]domain.Detection, error) {
	return s.listEligible(ctx, "image_id", imageID)
}

// ListEligibleByProject returns detections in a project that have extracted
// attributes and no outcome yet.
func (s *Store) ListEligibleByProject(ctx context.Context, projectID string) ([]domain.Detection, error) {
	return s.listEligible(ctx, "project_id", projectID)
}

func (s *Store) listEligible(ctx context.Context, column, value string) ([]domain.Detection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+detectionColumns+` FROM detections
         WHERE `+column+` = ? AND fully_analyzed = 1 AND matched_at IS NULL
         ORDER BY image_id, item_index`, value)
	if err != nil {
		return nil, fmt.Errorf("list eligible detections: %w", err)
	}
	defer rows.Close()

	var detections []domain.Detection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return detections, nil
}

// SaveOutcome overwrites the detection's selected candidate. A nil selection
// clears a previous outcome, so re-running the pipeline can downgrade a
// stale match.
func (s *Store) SaveOutcome(ctx context.Context, detectionID string, selected *domain.SelectedCandidate) error {
	var res sql.Result
	var err error

	if selected == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE detections SET
                selected_key = NULL, selected_name = NULL, selected_brand = NULL,
                selected_category = NULL, selected_image = NULL,
                selection_method = NULL, matched_at = NULL
             WHERE id = ?`, detectionID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE detections SET
                selected_key = ?, selected_name = ?, selected_brand = ?,
                selected_category = ?, selected_image = ?,
                selection_method = ?, matched_at = ?
             WHERE id = ?`,
			selected.CatalogKey, selected.Name, nullableString(selected.Brand),
			nullableString(selected.Category), nullableString(selected.ImageRef),
			selected.SelectionMethod, formatTime(selected.MatchedAt),
			detectionID)
	}
	if err != nil {
		return fmt.Errorf("%w: save outcome: %v", domain.ErrStorageWriteFailed, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save outcome rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrDetectionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDetection(row rowScanner) (*domain.Detection, error) {
	var d domain.Detection
	var brand, productName, size, flavor, category, cropRef sql.NullString
	var selectedKey, selectedName, selectedBrand, selectedCategory, selectedImage sql.NullString
	var selectionMethod, matchedAt sql.NullString
	var fullyAnalyzed int

	err := row.Scan(
		&d.ID, &d.ImageID, &d.ProjectID, &d.ItemIndex,
		&d.Region.X1, &d.Region.Y1, &d.Region.X2, &d.Region.Y2,
		&brand, &productName, &size, &flavor, &category,
		&d.Confidence.Brand, &d.Confidence.ProductName, &d.Confidence.Size,
		&d.Confidence.Flavor, &d.Confidence.Category,
		&fullyAnalyzed, &cropRef,
		&selectedKey, &selectedName, &selectedBrand, &selectedCategory, &selectedImage,
		&selectionMethod, &matchedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Brand = stringOrEmpty(brand)
	d.ProductName = stringOrEmpty(productName)
	d.Size = stringOrEmpty(size)
	d.Flavor = stringOrEmpty(flavor)
	d.Category = stringOrEmpty(category)
	d.CropRef = stringOrEmpty(cropRef)
	d.FullyAnalyzed = fullyAnalyzed != 0

	if selectedKey.Valid && matchedAt.Valid {
		ts, err := parseTime(matchedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse matched_at: %w", err)
		}
		d.Selected = &domain.SelectedCandidate{
			CatalogKey:      selectedKey.String,
			Name:            stringOrEmpty(selectedName),
			Brand:           stringOrEmpty(selectedBrand),
			Category:        stringOrEmpty(selectedCategory),
			ImageRef:        stringOrEmpty(selectedImage),
			SelectionMethod: stringOrEmpty(selectionMethod),
			MatchedAt:       ts,
		}
	}

	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
