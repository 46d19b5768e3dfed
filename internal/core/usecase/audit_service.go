package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
	"github.com/mssola/useragent"
)

const (
	defaultActivityLimit = 50
	summaryPageSize      = 500
)

// AuditService is the read side of the audit trail.
type AuditService struct {
	repo ports.AuditTrailRepository
}

func NewAuditService(repo ports.AuditTrailRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Page bounds a listing; zero values use the defaults.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultActivityLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// EntityHistory lists the changes of one entity, oldest first.
func (s *AuditService) EntityHistory(ctx context.Context, entityType, entityKey string) ([]domain.AuditActivity, error) {
	if strings.TrimSpace(entityType) == "" || strings.TrimSpace(entityKey) == "" {
		return nil, fmt.Errorf("entity type and key are required: %w", domain.ErrInvalidInput)
	}
	entries, err := s.repo.List(ctx, domain.AuditQuery{EntityType: entityType, EntityKey: entityKey, Ascending: true})
	if err != nil {
		return nil, err
	}
	return activities(entries), nil
}

// UserActivity lists the changes made by userID, newest first.
func (s *AuditService) UserActivity(ctx context.Context, userID string, from, to *time.Time, page Page) ([]domain.AuditActivity, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	page = page.normalized()
	entries, err := s.repo.List(ctx, domain.AuditQuery{Actor: userID, From: from, To: to, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, err
	}
	return activities(entries), nil
}

// SystemLog lists every change in the range, newest first.
func (s *AuditService) SystemLog(ctx context.Context, from, to *time.Time, page Page) ([]domain.AuditActivity, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	page = page.normalized()
	entries, err := s.repo.List(ctx, domain.AuditQuery{From: from, To: to, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, err
	}
	return activities(entries), nil
}

// Summary aggregates every entry in the range. A login is counted per
// refresh token created.
func (s *AuditService) Summary(ctx context.Context, from, to *time.Time) (domain.AuditSummary, error) {
	if err := checkRange(from, to); err != nil {
		return domain.AuditSummary{}, err
	}
	summary := domain.AuditSummary{
		From:          from,
		To:            to,
		ActionsByType: make(map[string]int),
		ActionsByUser: make(map[string]int),
	}

	for offset := 0; ; offset += summaryPageSize {
		entries, err := s.repo.List(ctx, domain.AuditQuery{From: from, To: to, Ascending: true, Limit: summaryPageSize, Offset: offset})
		if err != nil {
			return domain.AuditSummary{}, err
		}
		for _, e := range entries {
			summary.TotalActions++
			summary.ActionsByType[string(e.Action)]++
			summary.ActionsByUser[e.CreatedBy]++
			switch {
			case e.EntityType == "User" && e.Action == domain.AuditCreate:
				summary.UserCreations++
			case e.EntityType == "User" && e.IsSoftDelete():
				summary.UserDeletions++
			case e.EntityType == "User" && e.Action == domain.AuditUpdate:
				summary.UserUpdates++
			case e.EntityType == "RefreshToken" && e.Action == domain.AuditCreate:
				summary.LoginAttempts++
			}
		}
		if len(entries) < summaryPageSize {
			break
		}
	}
	return summary, nil
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("range end before start: %w", domain.ErrInvalidInput)
	}
	return nil
}

func activities(entries []domain.AuditEntry) []domain.AuditActivity {
	out := make([]domain.AuditActivity, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.AuditActivity{
			AuditEntry:  e,
			Description: e.Describe(),
			Client:      clientLabel(e.ClientAgent),
		})
	}
	return out
}

// clientLabel renders a user agent as e.g. "Chrome on Windows".
func clientLabel(agent string) string {
	if strings.TrimSpace(agent) == "" {
		return ""
	}
	ua := useragent.New(agent)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser == "" && os == "":
		return agent
	case os == "":
		return browser
	case browser == "":
		return os
	}
	label := browser + " on " + os
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}
