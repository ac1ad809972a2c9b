package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "middle-housing.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	header         TEXT NOT NULL DEFAULT '[]',
	columns        TEXT NOT NULL DEFAULT '{}',
	total          INTEGER NOT NULL DEFAULT 0,
	middle_housing INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS permit_records (
	dataset_id        TEXT NOT NULL REFERENCES datasets(id),
	idx               INTEGER NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	project_name      TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL,
	is_middle_housing INTEGER NOT NULL DEFAULT 0,
	unit_count        INTEGER NOT NULL DEFAULT 0,
	signals           TEXT NOT NULL DEFAULT '[]',
	original          TEXT NOT NULL DEFAULT '{}',
	latitude          REAL,
	longitude         REAL,
	geocode_source    TEXT NOT NULL DEFAULT '',
	geocode_quality   TEXT NOT NULL DEFAULT '',
	geocode_error     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (dataset_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_permit_records_category ON permit_records(dataset_id, category);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_key TEXT PRIMARY KEY,
	result      TEXT NOT NULL,
	cached_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDataset inserts or replaces ds and all of its records.
func (s *SQLiteStore) SaveDataset(ctx context.Context, ds *model.Dataset) error {
	prepare(ds)
	header, columns, err := encodeDatasetMeta(ds)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, header, columns, total, middle_housing, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, header = excluded.header,
			columns = excluded.columns, total = excluded.total, middle_housing = excluded.middle_housing`,
		ds.ID, ds.Name, header, columns, len(ds.Records), countMiddleHousing(ds.Records), ds.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert dataset %s", ds.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM permit_records WHERE dataset_id = ?`, ds.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear records %s", ds.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO permit_records (`+strings.Join(recordColumns, ", ")+`)
		VALUES (?`+strings.Repeat(", ?", len(recordColumns)-1)+`)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare record insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range ds.Records {
		vals, err := recordValues(ds.ID, r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d", r.Index)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit dataset")
}

// GetDataset loads a dataset and its records in index order.
func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	ds := &model.Dataset{}
	var header, columns string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, header, columns, created_at FROM datasets WHERE id = ?`, id,
	).Scan(&ds.ID, &ds.Name, &header, &columns, &ds.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: dataset %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dataset %s", id)
	}
	if err := decodeDatasetMeta(ds, header, columns); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectRecordColumns+` FROM permit_records WHERE dataset_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query records %s", id)
	}
	defer rows.Close() //nolint:errcheck

	ds.Records = []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		ds.Records = append(ds.Records, r)
	}
	return ds, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// ListDatasets returns stored datasets, newest first.
func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]model.DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, total, middle_housing FROM datasets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close() //nolint:errcheck

	infos := []model.DatasetInfo{}
	for rows.Next() {
		var info model.DatasetInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.Total, &info.MiddleHousing); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "sqlite: iterate datasets")
}

// DeleteDataset removes a dataset and its records.
func (s *SQLiteStore) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM permit_records WHERE dataset_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete records %s", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete dataset %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (*geocode.Result, bool, error) {
	var resultJSON string
	var cachedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT result, cached_at FROM geocode_cache WHERE address_key = ?`, key,
	).Scan(&resultJSON, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached geocode")
	}
	return cacheHit(resultJSON, cachedAt, maxAge)
}

func (s *SQLiteStore) SetCachedGeocode(ctx context.Context, key string, result geocode.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal geocode result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (address_key, result, cached_at) VALUES (?, ?, ?)
		ON CONFLICT (address_key) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at`,
		key, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set cached geocode")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: dataset %s", id)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
