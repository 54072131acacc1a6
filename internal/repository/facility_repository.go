package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/futsal-booking/internal/model"
)

// FacilityRepo persists facilities.
type FacilityRepo struct {
	db *sql.DB
}

// NewFacilityRepo returns a FacilityRepo bound to db.
func NewFacilityRepo(db *sql.DB) *FacilityRepo { return &FacilityRepo{db: db} }

const facilityColumns = `id, owner_id, name, type, surface, size, capacity, status, address, created_at, updated_at`

func scanFacility(s scanner) (*model.Facility, error) {
	var f model.Facility
	var addr sql.NullString
	if err := s.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Type, &f.Surface, &f.Size, &f.Capacity,
		&f.Status, &addr, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if addr.Valid {
		f.Address = &addr.String
	}
	return &f, nil
}

// Create inserts f and reloads it so defaults and timestamps are populated.
func (r *FacilityRepo) Create(ctx context.Context, f *model.Facility) error {
	const q = `INSERT INTO facilities (owner_id, name, type, surface, size, capacity, status, address) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, f.OwnerID, f.Name, f.Type, f.Surface, f.Size, f.Capacity, f.Status, f.Address)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*f = *created
	return nil
}

// GetByID returns the facility or ErrFacilityNotFound.
func (r *FacilityRepo) GetByID(ctx context.Context, id uint64) (*model.Facility, error) {
	const q = `SELECT ` + facilityColumns + ` FROM facilities WHERE id = ?`
	f, err := scanFacility(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFacilityNotFound
	}
	return f, err
}
