// Package leads implements the lead collection store and the HTTP client
// the intake pipeline uses to talk to it.
package leads

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadintake/pkg/dedup"
	"github.com/jordanlanch/leadintake/pkg/models"
)

// Service handles lead business logic
type Service struct {
	db     *gorm.DB
	region string
}

// NewService creates a new lead service
func NewService(db *gorm.DB, defaultRegion string) *Service {
	return &Service{db: db, region: defaultRegion}
}

// Migrate creates the leads table
func (s *Service) Migrate() error {
	return s.db.AutoMigrate(&Lead{})
}

// Create stores a lead record. Defaults for status and priority are applied
// when the caller left them blank.
func (s *Service) Create(ctx context.Context, rec models.LeadRecord) (*Lead, error) {
	lead := fromRecord(rec)
	lead.MobileNormalized = dedup.NormalizeMobile(rec.Mobile, s.region)
	lead.EmailNormalized = dedup.NormalizeEmail(rec.Email)

	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	if lead.Priority == "" {
		lead.Priority = models.LeadPriorityMedium
	}

	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	return &lead, nil
}

// ExistsByIdentity reports whether a lead already exists for the normalized
// mobile or email. Either side matching counts.
func (s *Service) ExistsByIdentity(ctx context.Context, mobile, email string) (bool, error) {
	normMobile := dedup.NormalizeMobile(mobile, s.region)
	normEmail := dedup.NormalizeEmail(email)

	query := s.db.WithContext(ctx).Model(&Lead{})
	switch {
	case normMobile != "" && normEmail != "":
		query = query.Where("mobile_normalized = ? OR email_normalized = ?", normMobile, normEmail)
	case normMobile != "":
		query = query.Where("mobile_normalized = ?", normMobile)
	case normEmail != "":
		query = query.Where("email_normalized = ?", normEmail)
	default:
		return false, nil
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query leads by identity: %w", err)
	}
	return count > 0, nil
}

// List returns leads for the back office with filters and pagination
func (s *Service) List(ctx context.Context, req models.LeadListRequest) ([]Lead, models.PaginationInfo, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	query := s.db.WithContext(ctx).Model(&Lead{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Source != "" {
		query = query.Where("source = ?", req.Source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to count leads: %w", err)
	}

	var rows []Lead
	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&rows).Error; err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to list leads: %w", err)
	}

	totalPages := int(total) / req.Limit
	if int(total)%req.Limit > 0 {
		totalPages++
	}

	pagination := models.PaginationInfo{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      int(total),
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
	return rows, pagination, nil
}

// Stats returns lead counts per status plus the overall total
func (s *Service) Stats(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&Lead{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate lead stats: %w", err)
	}

	stats := make(map[string]int64, len(rows)+1)
	var total int64
	for _, r := range rows {
		stats[r.Status] = r.Count
		total += r.Count
	}
	stats["total"] = total
	return stats, nil
}
