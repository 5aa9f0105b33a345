// Package cohort persists generated cohorts, latents included, in SQLite.
package cohort

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
)

// DB wraps a SQLite connection for cohort storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cohorts (
		cohort_id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		size INTEGER NOT NULL,
		horizon INTEGER NOT NULL,
		digest TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cohort_steps (
		cohort_id TEXT NOT NULL REFERENCES cohorts(cohort_id),
		individual INTEGER NOT NULL,
		step INTEGER NOT NULL,
		type INTEGER NOT NULL,
		trust INTEGER NOT NULL,
		case_idx INTEGER NOT NULL,
		advice INTEGER NOT NULL,
		decision INTEGER NOT NULL,
		outcome INTEGER NOT NULL,
		cont_x REAL NOT NULL,
		cont_y REAL NOT NULL,
		PRIMARY KEY (cohort_id, individual, step)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// #region save
// Save writes a generated cohort in one transaction and returns its metadata.
func (db *DB) Save(seed uint64, seq []generator.Step) (Cohort, error) {
	if len(seq) == 0 || seq[0].Size() == 0 {
		return Cohort{}, fmt.Errorf("save cohort: %w", generator.ErrCohortSize)
	}
	c := Cohort{
		CohortID:  uuid.New().String(),
		Seed:      seed,
		Size:      seq[0].Size(),
		Horizon:   len(seq),
		Digest:    generator.Digest(seq),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return Cohort{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`INSERT INTO cohorts (cohort_id, seed, size, horizon, digest, created_at)
		VALUES (:cohort_id, :seed, :size, :horizon, :digest, :created_at)`, c); err != nil {
		return Cohort{}, fmt.Errorf("insert cohort: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO cohort_steps
		(cohort_id, individual, step, type, trust, case_idx, advice, decision, outcome, cont_x, cont_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Cohort{}, fmt.Errorf("prepare steps: %w", err)
	}
	defer stmt.Close()

	for t, st := range seq {
		for i := 0; i < c.Size; i++ {
			if _, err := stmt.Exec(c.CohortID, i, t,
				st.Type[i], st.Trust[i], st.Case[i], st.Advice[i], st.Decision[i], st.Outcome[i],
				st.Cont[i][0], st.Cont[i][1]); err != nil {
				return Cohort{}, fmt.Errorf("insert step %d/%d: %w", i, t, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Cohort{}, fmt.Errorf("commit tx: %w", err)
	}
	return c, nil
}

// #endregion save

// #region load
// Get returns the metadata of a stored cohort.
func (db *DB) Get(id string) (Cohort, error) {
	var c Cohort
	err := db.conn.Get(&c, "SELECT cohort_id, seed, size, horizon, digest, created_at FROM cohorts WHERE cohort_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Cohort{}, fmt.Errorf("cohort %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Cohort{}, fmt.Errorf("get cohort: %w", err)
	}
	return c, nil
}

// Load reads a stored cohort back into step-major form and checks it
// against its recorded digest.
func (db *DB) Load(id string) (Cohort, []generator.Step, error) {
	c, err := db.Get(id)
	if err != nil {
		return Cohort{}, nil, err
	}

	var rows []row
	if err := db.conn.Select(&rows, `SELECT individual, step, type, trust, case_idx, advice, decision, outcome, cont_x, cont_y
		FROM cohort_steps WHERE cohort_id = ? ORDER BY step, individual`, id); err != nil {
		return Cohort{}, nil, fmt.Errorf("select steps: %w", err)
	}
	if len(rows) != c.Size*c.Horizon {
		return Cohort{}, nil, fmt.Errorf("cohort %s has %d rows, want %d: %w", id, len(rows), c.Size*c.Horizon, ErrCorrupt)
	}

	seq := make([]generator.Step, c.Horizon)
	for t := range seq {
		seq[t] = generator.Step{
			Type:     make([]domain.Type, c.Size),
			Trust:    make([]domain.Trust, c.Size),
			Case:     make([]domain.Case, c.Size),
			Advice:   make([]domain.Advice, c.Size),
			Decision: make([]domain.Decision, c.Size),
			Outcome:  make([]domain.Outcome, c.Size),
			Cont:     make([][domain.ContDim]float64, c.Size),
		}
	}
	for _, r := range rows {
		if r.Step < 0 || r.Step >= c.Horizon || r.Individual < 0 || r.Individual >= c.Size {
			return Cohort{}, nil, fmt.Errorf("cohort %s row (%d, %d) out of range: %w", id, r.Individual, r.Step, ErrCorrupt)
		}
		st := &seq[r.Step]
		i := r.Individual
		st.Type[i] = domain.Type(r.Type)
		st.Trust[i] = domain.Trust(r.Trust)
		st.Case[i] = domain.Case(r.Case)
		st.Advice[i] = domain.Advice(r.Advice)
		st.Decision[i] = domain.Decision(r.Decision)
		st.Outcome[i] = domain.Outcome(r.Outcome)
		st.Cont[i] = [domain.ContDim]float64{r.ContX, r.ContY}
	}

	if got := generator.Digest(seq); got != c.Digest {
		return Cohort{}, nil, fmt.Errorf("cohort %s digest %s, recorded %s: %w", id, got, c.Digest, ErrCorrupt)
	}
	return c, seq, nil
}

// List returns the most recent cohorts, newest first.
func (db *DB) List(limit int) ([]Cohort, error) {
	var out []Cohort
	err := db.conn.Select(&out,
		"SELECT cohort_id, seed, size, horizon, digest, created_at FROM cohorts ORDER BY rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	return out, nil
}

// #endregion load
