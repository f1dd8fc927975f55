package jsonfile

import (
	"context"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
)

type recordsRepo struct {
	f *jsonFile
}

func (r *recordsRepo) Load(ctx context.Context) ([]domain.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	if err := r.f.ensure(); err != nil {
		return nil, err
	}

	var records []domain.UserRecord
	if err := r.f.read(&records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.UserRecord{}
	}
	return records, nil
}

func (r *recordsRepo) SaveAll(ctx context.Context, records []domain.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []domain.UserRecord{}
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	return r.f.write(records)
}
