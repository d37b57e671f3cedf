package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Store wraps DuckDB operations over the profile and embedding-record tables
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

const profileColumns = `id, platform_number, cycle_number, collected_at, latitude, longitude,
		mixed_layer_depth, thermocline_depth, salinity_min_depth, salinity_max_depth,
		mean_stratification, ocean_heat_content, surface_temp, surface_sal, pressure_mean,
		level_count, direction, temp_qc, psal_qc, pres_qc`

// NewStore opens (or creates) a DuckDB database at dbPath. An empty path opens an in-memory database.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize sets up the database schema
func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR PRIMARY KEY,
			platform_number VARCHAR,
			cycle_number INTEGER,
			collected_at TIMESTAMPTZ NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			mixed_layer_depth DOUBLE,
			thermocline_depth DOUBLE,
			salinity_min_depth DOUBLE,
			salinity_max_depth DOUBLE,
			mean_stratification DOUBLE,
			ocean_heat_content DOUBLE,
			surface_temp DOUBLE,
			surface_sal DOUBLE,
			pressure_mean DOUBLE,
			level_count INTEGER,
			direction VARCHAR,
			temp_qc VARCHAR,
			psal_qc VARCHAR,
			pres_qc VARCHAR
		);

		CREATE TABLE IF NOT EXISTS profile_embeddings (
			profile_id VARCHAR PRIMARY KEY,
			summary TEXT NOT NULL,
			embedding FLOAT[] NOT NULL,
			model_version VARCHAR NOT NULL,
			tags VARCHAR[],
			indexed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_profiles_collected_at ON profiles (collected_at DESC);
		CREATE INDEX IF NOT EXISTS idx_profiles_lat_lon ON profiles (latitude, longitude);
		CREATE INDEX IF NOT EXISTS idx_profile_embeddings_version ON profile_embeddings (model_version);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	s.logger.Debug("profile schema ready")
	return nil
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// UpsertProfiles inserts profiles, replacing any existing row with the same id.
// Profiles without an id are assigned one.
func (s *Store) UpsertProfiles(ctx context.Context, profiles []models.Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin upsert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return unavailable("prepare upsert", err)
	}
	defer stmt.Close()

	for i := range profiles {
		p := &profiles[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %d: %w", i, err)
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		_, err := stmt.ExecContext(ctx,
			p.ID, p.PlatformNumber, p.CycleNumber, p.CollectedAt, p.Latitude, p.Longitude,
			p.MixedLayerDepth, p.ThermoclineDepth, p.SalinityMinDepth, p.SalinityMaxDepth,
			p.MeanStratification, p.OceanHeatContent, p.SurfaceTemp, p.SurfaceSalinity, p.PressureMean,
			p.LevelCount, p.Direction, p.QC.Temperature, p.QC.Salinity, p.QC.Pressure,
		)
		if err != nil {
			return unavailable("insert profile", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit upsert", err)
	}
	return nil
}

// GetProfile retrieves a single profile by ID
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get profile", err)
	}
	return p, nil
}

// ListProfiles returns the newest profiles first
func (s *Store) ListProfiles(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles ORDER BY collected_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, unavailable("list profiles", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// AllProfiles returns every stored profile, oldest first
func (s *Store) AllProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles ORDER BY collected_at, id")
	if err != nil {
		return nil, unavailable("list all profiles", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// DeleteProfile removes a profile and its embedding record
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return unavailable("delete profile", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM profile_embeddings WHERE profile_id = ?", id); err != nil {
		return unavailable("delete embedding record", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrStoreUnavailable, err)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var platform, direction, tempQC, psalQC, presQC sql.NullString
	var cycle, levels sql.NullInt64
	var mld, thermo, salMin, salMax, strat, ohc, temp, sal, pres sql.NullFloat64

	err := row.Scan(
		&p.ID, &platform, &cycle, &p.CollectedAt, &p.Latitude, &p.Longitude,
		&mld, &thermo, &salMin, &salMax, &strat, &ohc, &temp, &sal, &pres,
		&levels, &direction, &tempQC, &psalQC, &presQC,
	)
	if err != nil {
		return nil, err
	}

	p.PlatformNumber = platform.String
	p.CycleNumber = int(cycle.Int64)
	p.MixedLayerDepth = mld.Float64
	p.ThermoclineDepth = thermo.Float64
	p.SalinityMinDepth = salMin.Float64
	p.SalinityMaxDepth = salMax.Float64
	p.MeanStratification = strat.Float64
	p.OceanHeatContent = ohc.Float64
	p.SurfaceTemp = temp.Float64
	p.SurfaceSalinity = sal.Float64
	p.PressureMean = pres.Float64
	p.LevelCount = int(levels.Int64)
	p.Direction = direction.String
	p.QC = models.QCFlags{Temperature: tempQC.String, Salinity: psalQC.String, Pressure: presQC.String}
	p.CollectedAt = p.CollectedAt.UTC()

	return &p, nil
}

func scanProfiles(rows *sql.Rows) ([]models.Profile, error) {
	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, unavailable("scan profile", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate profiles", err)
	}
	return profiles, nil
}

// encodeList renders a Go slice as a JSON literal DuckDB casts to a LIST
func encodeList(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DuckDB returns FLOAT[] as []interface{} with float32 elements
func decodeVector(raw any) []float32 {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]float32, len(v))
		for i, val := range v {
			switch f := val.(type) {
			case float32:
				out[i] = f
			case float64:
				out[i] = float32(f)
			}
		}
		return out
	case []float32:
		return v
	}
	return nil
}

// DuckDB returns VARCHAR[] as []interface{}
func decodeStrings(raw any) []string {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, len(v))
		for i, tag := range v {
			if s, ok := tag.(string); ok {
				out[i] = s
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

func placeholders(n int, start int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
