package hrdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// DirectoryDB resolves access-control configuration. Read-only: the worker
// never writes applications or roles.
type DirectoryDB struct {
	db *bun.DB
}

func NewDirectory(db *bun.DB) *DirectoryDB {
	return &DirectoryDB{db: db}
}

func (r *DirectoryDB) ResolveApplication(ctx context.Context, code string) (*Application, error) {
	app := new(Application)
	err := r.db.NewSelect().
		Model(app).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: application %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("resolve application %s: %w", code, err)
	}

	return app, nil
}

func (r *DirectoryDB) DefaultEmployeeRole(ctx context.Context, applicationID string) (*ApplicationRole, error) {
	role := new(ApplicationRole)
	err := r.db.NewSelect().
		Model(role).
		Where("application_id = ?", applicationID).
		Where("default_for_employees = TRUE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: default employee role for application %s", ErrNotFound, applicationID)
		}
		return nil, fmt.Errorf("default employee role for application %s: %w", applicationID, err)
	}

	return role, nil
}
