package metrics

import (
	"database/sql"

	"codeberg.org/mutker/sensornode/internal/errors"
)

// initSchema creates the pipeline metrics table on first use.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS pipeline_metrics (
            timestamp INTEGER PRIMARY KEY,
            sampled INTEGER,
            dropped INTEGER,
            buffered INTEGER,
            batches INTEGER,
            send_failures INTEGER,
            link_up INTEGER
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
