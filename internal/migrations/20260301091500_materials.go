package migrations

import (
	"github.com/jmoiron/sqlx"
)

func init() {
	register(&migration{
		version: "20260301091500",
		up:      mig_20260301091500_materials_up,
		down:    mig_20260301091500_materials_down,
	})
}

func mig_20260301091500_materials_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS materials (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            qr_code_id VARCHAR(255) NOT NULL,
            material_name VARCHAR(255) NOT NULL,
            material_type VARCHAR(255) NOT NULL DEFAULT '',
            color VARCHAR(255) NOT NULL DEFAULT '',
            manufacturer VARCHAR(255) NOT NULL DEFAULT '',
            production_date VARCHAR(64) NOT NULL DEFAULT '',
            features TEXT[] NOT NULL DEFAULT '{}',
            care_instructions TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL DEFAULT '',
            CONSTRAINT materials_qr_code_id_key UNIQUE (qr_code_id)
        );
    `)
	return err
}

func mig_20260301091500_materials_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS materials;`)
	return err
}
