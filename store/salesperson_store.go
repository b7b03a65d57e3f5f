package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"

	"visittrack/api/models"
)

var (
	ErrSalespersonExists   = errors.New("salesperson already exists")
	ErrSalespersonNotFound = errors.New("salesperson not found")
)

type SalespersonStore struct {
	db *sql.DB
}

func NewSalespersonStore(db *sql.DB) *SalespersonStore {
	return &SalespersonStore{db: db}
}

// CreateSalesperson inserts a new salesperson account.
func (s *SalespersonStore) CreateSalesperson(ctx context.Context, email, name string, hashedPassword []byte) (*models.Salesperson, error) {
	sp := &models.Salesperson{}
	query := `
		INSERT INTO salespeople (email, name, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id, email, name, created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query, email, name, hashedPassword).Scan(
		&sp.ID,
		&sp.Email,
		&sp.Name,
		&sp.CreatedAt,
		&sp.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrSalespersonExists, email)
		}
		return nil, fmt.Errorf("failed to create salesperson: %w", err)
	}

	log.Printf("Salesperson created in DB: ID=%d, Email=%s", sp.ID, sp.Email)
	return sp, nil
}

func (s *SalespersonStore) GetSalespersonByEmail(ctx context.Context, email string) (*models.Salesperson, error) {
	sp := &models.Salesperson{}
	query := `
		SELECT id, email, name, hashed_password, created_at, updated_at
		FROM salespeople
		WHERE email = $1;
	`
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&sp.ID,
		&sp.Email,
		&sp.Name,
		&sp.HashedPassword,
		&sp.CreatedAt,
		&sp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSalespersonNotFound, email)
		}
		return nil, fmt.Errorf("failed to get salesperson by email: %w", err)
	}

	return sp, nil
}
