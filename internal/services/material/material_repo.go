package material

import (
	"context"
	"errors"

	"github.com/curaious/fabricqr/internal/db"
)

var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrMissingQRCodeID  = errors.New("qrCodeId is required")
	ErrMissingName      = errors.New("materialName is required")
)

// MaterialRepo is the material store. The API only reads from it; Upsert
// exists for the import command.
type MaterialRepo interface {
	GetByQRCodeID(ctx context.Context, qrCodeID string) (*Material, error)
	Upsert(ctx context.Context, m *Material) error
	Ping(ctx context.Context) error
}

type unavailableRepo struct{}

func NewUnavailableRepo() MaterialRepo {
	return unavailableRepo{}
}

func (unavailableRepo) GetByQRCodeID(context.Context, string) (*Material, error) {
	return nil, db.ErrNotConfigured
}
func (unavailableRepo) Upsert(context.Context, *Material) error { return db.ErrNotConfigured }
func (unavailableRepo) Ping(context.Context) error              { return db.ErrNotConfigured }
