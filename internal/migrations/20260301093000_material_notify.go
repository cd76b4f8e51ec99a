package migrations

import "github.com/jmoiron/sqlx"

func init() {
	register(&migration{
		version: "20260301093000",
		up:      mig_20260301093000_material_notify_up,
		down:    mig_20260301093000_material_notify_down,
	})
}

func mig_20260301093000_material_notify_up(tx *sqlx.Tx) error {
	// Payload is "<operation>:<qr_code_id>", read by the pubsub listener. An
	// update that renames qr_code_id notifies the old id too.
	_, err := tx.Exec(`
		CREATE OR REPLACE FUNCTION notify_material_change()
		RETURNS TRIGGER AS $$
		BEGIN
			IF TG_OP = 'DELETE' THEN
				PERFORM pg_notify('material_changes', TG_OP || ':' || OLD.qr_code_id);
				RETURN OLD;
			END IF;
			IF TG_OP = 'UPDATE' AND OLD.qr_code_id <> NEW.qr_code_id THEN
				PERFORM pg_notify('material_changes', TG_OP || ':' || OLD.qr_code_id);
			END IF;
			PERFORM pg_notify('material_changes', TG_OP || ':' || NEW.qr_code_id);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TRIGGER materials_notify
		AFTER INSERT OR UPDATE OR DELETE ON materials
		FOR EACH ROW EXECUTE FUNCTION notify_material_change();
	`)
	return err
}

func mig_20260301093000_material_notify_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TRIGGER IF EXISTS materials_notify ON materials;`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DROP FUNCTION IF EXISTS notify_material_change();`)
	return err
}
