package cases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service validates and stores cases.
type Service struct {
	Repo Repo
	now  func() time.Time
}

// NewService constructs a Service backed by repo.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, now: time.Now}
}

// CreateInput is the caller-supplied part of a case.
type CreateInput struct {
	Title         string `json:"title"`
	Text          string `json:"case_text"`
	JudgeDecision string `json:"judge_decision"`
	DecidedOn     string `json:"decided_on"`
}

// Create stores a new case with a generated id.
func (s *Service) Create(ctx context.Context, in CreateInput) (Case, error) {
	title := strings.TrimSpace(in.Title)
	text := strings.TrimSpace(in.Text)
	if title == "" || text == "" {
		return Case{}, ErrInvalidCase
	}
	now := s.now().UTC()
	c := Case{
		ID:            uuid.NewString(),
		Title:         title,
		Text:          text,
		JudgeDecision: strings.TrimSpace(in.JudgeDecision),
		DecidedOn:     strings.TrimSpace(in.DecidedOn),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Case, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Case, error) {
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// Lookup returns the existing cases among ids, keyed by id.
func (s *Service) Lookup(ctx context.Context, ids []string) (map[string]Case, error) {
	return s.Repo.GetMany(ctx, ids)
}
