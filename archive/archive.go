// Copyright 2025 The email-checker authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/timujinne/email-checker-sub004/metrics"
	"github.com/timujinne/email-checker-sub004/registry"
)

// Archive keeps metric snapshots and A/B outcomes in a local sqlite
// database so monitoring history survives restarts. The in-memory
// tracker stays the source of truth for recent history; the archive
// only appends.
type Archive struct {
	db *sql.DB
}

func NewArchive(path string) (*Archive, error) {
	dbConn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics archive: %w", err)
	}
	return &Archive{db: dbConn}, nil
}

func (arch *Archive) Close() error {
	if arch != nil && arch.db != nil {
		return arch.db.Close()
	}
	return nil
}

func (arch *Archive) createSnapshotTable() error {
	_, err := arch.db.Exec(
		"CREATE TABLE metric_snapshots (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"model TEXT NOT NULL, " +
			"metricType TEXT NOT NULL, " +
			"measures TEXT NOT NULL, " +
			"sampleCount INTEGER NOT NULL, " +
			"created INTEGER NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `metric_snapshots`")
	return nil
}

func (arch *Archive) createABOutcomeTable() error {
	_, err := arch.db.Exec(
		"CREATE TABLE ab_outcomes (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"model TEXT NOT NULL, " +
			"versionA TEXT NOT NULL, " +
			"versionB TEXT NOT NULL, " +
			"winner TEXT NOT NULL, " +
			"accuracyA FLOAT NOT NULL, " +
			"accuracyB FLOAT NOT NULL, " +
			"created INTEGER NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `ab_outcomes`")
	return nil
}

func (arch *Archive) tableExists(tn string) (bool, error) {
	ans := arch.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tn)
	var nm sql.NullString
	err := ans.Scan(&nm)
	if err == sql.ErrNoRows {
		return false, nil

	} else if err != nil {
		return false, fmt.Errorf("failed to determine existence of table %s: %w", tn, err)
	}
	return true, nil
}

func (arch *Archive) Init() error {
	for tn, create := range map[string]func() error{
		"metric_snapshots": arch.createSnapshotTable,
		"ab_outcomes":      arch.createABOutcomeTable,
	} {
		ex, err := arch.tableExists(tn)
		if err != nil {
			return fmt.Errorf("failed to init table %s: %w", tn, err)
		}
		if ex {
			log.Info().Str("table", tn).Msg("table already exists")

		} else if err := create(); err != nil {
			return err
		}
	}
	return nil
}

// InsertSnapshot appends one snapshot row. Raw sample values are not
// archived, only the aggregated measures.
func (arch *Archive) InsertSnapshot(snap metrics.Snapshot) error {
	measures, err := json.Marshal(snap.Values)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	_, err = arch.db.Exec(
		"INSERT INTO metric_snapshots (model, metricType, measures, sampleCount, created) "+
			"VALUES (?, ?, ?, ?, ?)",
		snap.Model,
		string(snap.Type),
		string(measures),
		snap.SampleCount,
		snap.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshots returns the archived snapshots of one model, oldest
// first, up to limit rows (0 means no limit).
func (arch *Archive) GetSnapshots(model string, limit int) ([]metrics.Snapshot, error) {
	query := "SELECT model, metricType, measures, sampleCount, created " +
		"FROM metric_snapshots WHERE model = ? ORDER BY created, id"
	args := []any{model}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := arch.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}
	defer rows.Close()
	ans := make([]metrics.Snapshot, 0, 50)
	for rows.Next() {
		var snap metrics.Snapshot
		var measures string
		var created int64
		if err := rows.Scan(&snap.Model, &snap.Type, &measures, &snap.SampleCount, &created); err != nil {
			return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
		}
		if err := json.Unmarshal([]byte(measures), &snap.Values); err != nil {
			return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
		}
		snap.Created = time.Unix(created, 0)
		ans = append(ans, snap)
	}
	return ans, rows.Err()
}

// InsertABOutcome appends one concluded experiment row. Archive
// satisfies registry.ABOutcomeArchiver with it.
func (arch *Archive) InsertABOutcome(outcome registry.ABOutcome) error {
	_, err := arch.db.Exec(
		"INSERT INTO ab_outcomes (model, versionA, versionB, winner, accuracyA, accuracyB, created) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		outcome.Model,
		outcome.VersionA,
		outcome.VersionB,
		outcome.Winner,
		outcome.AccuracyA,
		outcome.AccuracyB,
		outcome.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert A/B outcome: %w", err)
	}
	return nil
}

func (arch *Archive) GetABOutcomes(model string) ([]registry.ABOutcome, error) {
	rows, err := arch.db.Query(
		"SELECT model, versionA, versionB, winner, accuracyA, accuracyB, created "+
			"FROM ab_outcomes WHERE model = ? ORDER BY created, id", model)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch A/B outcomes: %w", err)
	}
	defer rows.Close()
	ans := make([]registry.ABOutcome, 0, 10)
	for rows.Next() {
		var outcome registry.ABOutcome
		var created int64
		err := rows.Scan(
			&outcome.Model,
			&outcome.VersionA,
			&outcome.VersionB,
			&outcome.Winner,
			&outcome.AccuracyA,
			&outcome.AccuracyB,
			&created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch A/B outcomes: %w", err)
		}
		outcome.Created = time.Unix(created, 0)
		ans = append(ans, outcome)
	}
	return ans, rows.Err()
}
