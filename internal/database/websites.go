package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"linkauthority-go/internal/models"
	"linkauthority-go/internal/store"

	"go.uber.org/zap"
)

// CreateWebsite persists a new website. The duplicate check runs first so
// callers get ErrDuplicateURL rather than a raw constraint violation.
func (s *Service) CreateWebsite(ctx context.Context, w *models.Website) error {
	if existing, err := s.GetWebsiteByDomain(ctx, w.Domain); err == nil && existing != nil {
		return fmt.Errorf("%w: %s", store.ErrDuplicateURL, w.Domain)
	} else if err != nil && !errors.Is(err, store.ErrWebsiteNotFound) {
		return err
	}

	_, err := s.db.ExecContext(ctx, queryInsertWebsite,
		w.Id, w.UserId, w.URL, w.Domain, w.DomainAuthority, w.Category,
		w.ServiceType, w.Location.Country, w.Location.State, w.Location.City,
		w.VerificationToken)
	if err != nil {
		zap.L().Error("Failed to insert website", zap.String("url", w.URL), zap.Error(err))
		return fmt.Errorf("unable to insert website: %w", err)
	}

	zap.L().Info("Website registered",
		zap.String("id", w.Id),
		zap.String("domain", w.Domain),
		zap.Int("domain_authority", w.DomainAuthority))
	return nil
}

func (s *Service) GetWebsite(ctx context.Context, id string) (*models.Website, error) {
	return s.getWebsite(ctx, queryGetWebsiteById, id)
}

func (s *Service) GetWebsiteByDomain(ctx context.Context, domain string) (*models.Website, error) {
	return s.getWebsite(ctx, queryGetWebsiteByDomain, domain)
}

func (s *Service) getWebsite(ctx context.Context, query, key string) (*models.Website, error) {
	row := s.db.QueryRowContext(ctx, query, key)
	w, err := scanWebsite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrWebsiteNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query website: %w", err)
	}
	return w, nil
}

// ListWebsitesByOwner returns all websites owned by a user, oldest first.
func (s *Service) ListWebsitesByOwner(ctx context.Context, userId string) ([]models.Website, error) {
	rows, err := s.db.QueryContext(ctx, queryListWebsitesByOwner, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query websites: %w", err)
	}
	defer closeRows(rows)

	return collectWebsites(rows)
}

// CountWebsitesByOwner reports how many websites a user has registered.
func (s *Service) CountWebsitesByOwner(ctx context.Context, userId string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountWebsitesByOwner, userId).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count websites: %w", err)
	}
	return count, nil
}

// ListAllWebsites returns every registered website, oldest first. Used by
// the bulk re-analysis pass.
func (s *Service) ListAllWebsites(ctx context.Context) ([]models.Website, error) {
	rows, err := s.db.QueryContext(ctx, queryListAllWebsites)
	if err != nil {
		return nil, fmt.Errorf("unable to query websites: %w", err)
	}
	defer closeRows(rows)

	return collectWebsites(rows)
}

// ListVerifiedWebsites returns every marketplace-eligible website, highest
// authority first. The owner-balance visibility rule is applied by the
// caller at read time.
func (s *Service) ListVerifiedWebsites(ctx context.Context) ([]models.Website, error) {
	rows, err := s.db.QueryContext(ctx, queryListVerifiedWebsites)
	if err != nil {
		return nil, fmt.Errorf("unable to query verified websites: %w", err)
	}
	defer closeRows(rows)

	return collectWebsites(rows)
}

// UpdateWebsiteAttrs updates the mutable attributes. The URL is immutable
// after creation and has no update path.
func (s *Service) UpdateWebsiteAttrs(ctx context.Context, id, category, serviceType string, location models.Location) error {
	result, err := s.db.ExecContext(ctx, queryUpdateWebsiteAttrs,
		category, serviceType, location.Country, location.State, location.City, id)
	if err != nil {
		return fmt.Errorf("unable to update website: %w", err)
	}
	return requireRow(result, id)
}

// MarkVerified flips the website to verified with the given method.
func (s *Service) MarkVerified(ctx context.Context, id, method string) error {
	result, err := s.db.ExecContext(ctx, queryMarkWebsiteVerified, method, time.Now(), id)
	if err != nil {
		return fmt.Errorf("unable to mark website verified: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return err
	}

	zap.L().Info("Website verified", zap.String("id", id), zap.String("method", method))
	return nil
}

// UpdateWebsiteAnalysis overwrites the analysis-derived attributes after an
// admin re-analysis. The only path that changes domain authority.
func (s *Service) UpdateWebsiteAnalysis(ctx context.Context, id string, domainAuthority int, category, serviceType string, location models.Location) error {
	result, err := s.db.ExecContext(ctx, queryUpdateWebsiteAnalysis,
		domainAuthority, category, serviceType,
		location.Country, location.State, location.City, id)
	if err != nil {
		return fmt.Errorf("unable to update website analysis: %w", err)
	}
	return requireRow(result, id)
}

// ---------- helpers ----------

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", store.ErrWebsiteNotFound, id)
	}
	return nil
}

func scanWebsite(row rowScanner) (*models.Website, error) {
	var w models.Website
	var verifiedAt sql.NullTime
	err := row.Scan(&w.Id, &w.UserId, &w.URL, &w.Domain, &w.DomainAuthority,
		&w.Category, &w.ServiceType, &w.Location.Country, &w.Location.State,
		&w.Location.City, &w.IsVerified, &w.VerificationToken,
		&w.VerificationMethod, &verifiedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		w.VerifiedAt = &verifiedAt.Time
	}
	return &w, nil
}

func collectWebsites(rows *sql.Rows) ([]models.Website, error) {
	var out []models.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan website row: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating website rows: %w", err)
	}
	return out, nil
}
