package material

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type materialRow struct {
	ID               string         `db:"id"`
	QRCodeID         string         `db:"qr_code_id"`
	MaterialName     string         `db:"material_name"`
	MaterialType     string         `db:"material_type"`
	Color            string         `db:"color"`
	Manufacturer     string         `db:"manufacturer"`
	ProductionDate   string         `db:"production_date"`
	Features         pq.StringArray `db:"features"`
	CareInstructions string         `db:"care_instructions"`
	ImageURL         string         `db:"image_url"`
}

func (row *materialRow) toMaterial() *Material {
	features := []string(row.Features)
	if features == nil {
		features = []string{}
	}
	return &Material{
		ID:               row.ID,
		QRCodeID:         row.QRCodeID,
		MaterialName:     row.MaterialName,
		MaterialType:     row.MaterialType,
		Color:            row.Color,
		Manufacturer:     row.Manufacturer,
		ProductionDate:   row.ProductionDate,
		Features:         features,
		CareInstructions: row.CareInstructions,
		ImageURL:         row.ImageURL,
	}
}

type PostgresMaterialRepo struct {
	db *sqlx.DB
}

func NewPostgresMaterialRepo(db *sqlx.DB) *PostgresMaterialRepo {
	return &PostgresMaterialRepo{db: db}
}

func (r *PostgresMaterialRepo) GetByQRCodeID(ctx context.Context, qrCodeID string) (*Material, error) {
	query := `
        SELECT id, qr_code_id, material_name, material_type, color, manufacturer,
               production_date, features, care_instructions, image_url
        FROM materials
        WHERE qr_code_id = $1
    `

	var row materialRow
	if err := r.db.GetContext(ctx, &row, query, qrCodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMaterialNotFound
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return row.toMaterial(), nil
}

func (r *PostgresMaterialRepo) Upsert(ctx context.Context, m *Material) error {
	if err := m.Validate(); err != nil {
		return err
	}

	query := `
        INSERT INTO materials (qr_code_id, material_name, material_type, color, manufacturer,
                               production_date, features, care_instructions, image_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (qr_code_id) DO UPDATE SET
            material_name = EXCLUDED.material_name,
            material_type = EXCLUDED.material_type,
            color = EXCLUDED.color,
            manufacturer = EXCLUDED.manufacturer,
            production_date = EXCLUDED.production_date,
            features = EXCLUDED.features,
            care_instructions = EXCLUDED.care_instructions,
            image_url = EXCLUDED.image_url
        RETURNING id
    `

	err := r.db.QueryRowxContext(ctx, query,
		m.QRCodeID,
		m.MaterialName,
		m.MaterialType,
		m.Color,
		m.Manufacturer,
		m.ProductionDate,
		pq.StringArray(m.Features),
		m.CareInstructions,
		m.ImageURL,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert material: %w", err)
	}
	return nil
}

func (r *PostgresMaterialRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
