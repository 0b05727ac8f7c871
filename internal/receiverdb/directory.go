// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package receiverdb

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/adsbnet/mlat-tracker/internal/mlat"
	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/jmoiron/sqlx"
)

// Receiver is one row of the receiver directory.
type Receiver struct {
	ID       int64   `db:"id"`
	User     string  `db:"user"`
	ECEFX    float64 `db:"ecef_x"`
	ECEFY    float64 `db:"ecef_y"`
	ECEFZ    float64 `db:"ecef_z"`
	Privacy  bool    `db:"privacy"`
	LastSeen float64 `db:"last_seen"`
}

// Directory is a sqlx/squirrel-backed repository over the receiver table.
type Directory struct {
	db        *sqlx.DB
	stmtCache *sq.StmtCache
}

// NewDirectory wraps an already-connected db handle (see Connect).
func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db, stmtCache: sq.NewStmtCache(db.DB)}
}

// Upsert inserts or updates a receiver keyed by user. position is an ECEF
// triple in metres.
func (d *Directory) Upsert(user string, position [3]float64, privacy bool) error {
	_, err := d.db.Exec(
		`INSERT INTO receiver (user, ecef_x, ecef_y, ecef_z, privacy, last_seen)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT(user) DO UPDATE SET ecef_x=excluded.ecef_x, ecef_y=excluded.ecef_y, ecef_z=excluded.ecef_z, privacy=excluded.privacy`,
		user, position[0], position[1], position[2], privacy,
	)
	if err != nil {
		log.Errorf("receiverdb: upsert %s failed: %v", user, err)
	}
	return err
}

// TouchLastSeen updates the last_seen wall-clock timestamp for user.
func (d *Directory) TouchLastSeen(user string, wallTs float64) error {
	_, err := sq.Update("receiver").
		Set("last_seen", wallTs).
		Where(sq.Eq{"user": user}).
		RunWith(d.stmtCache).Exec()
	if err != nil {
		log.Warnf("receiverdb: touch %s failed: %v", user, err)
	}
	return err
}

// Remove deletes a receiver from the directory by user id.
func (d *Directory) Remove(user string) error {
	_, err := sq.Delete("receiver").Where(sq.Eq{"user": user}).RunWith(d.stmtCache).Exec()
	if err != nil {
		log.Errorf("receiverdb: remove %s failed: %v", user, err)
	}
	return err
}

// List returns every receiver currently in the directory, ordered by
// user for deterministic Arena construction.
func (d *Directory) List() ([]Receiver, error) {
	rows, err := sq.Select("id", "user", "ecef_x", "ecef_y", "ecef_z", "privacy", "last_seen").
		From("receiver").OrderBy("user ASC").RunWith(d.db).Query()
	if err != nil {
		log.Warn("receiverdb: list query failed")
		return nil, err
	}
	defer rows.Close()

	var out []Receiver
	for rows.Next() {
		var r Receiver
		if err := rows.Scan(&r.ID, &r.User, &r.ECEFX, &r.ECEFY, &r.ECEFZ, &r.Privacy, &r.LastSeen); err != nil {
			log.Warn("receiverdb: scan failed")
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadArena builds a fresh mlat.Arena from the current directory
// contents, for use at startup or after a directory-changing reload.
func (d *Directory) LoadArena() (*mlat.Arena, error) {
	receivers, err := d.List()
	if err != nil {
		return nil, err
	}

	entries := make([]mlat.ReceiverEntry, len(receivers))
	for i, r := range receivers {
		entries[i] = mlat.ReceiverEntry{User: r.User, Position: [3]float64{r.ECEFX, r.ECEFY, r.ECEFZ}}
	}
	return mlat.NewArena(entries), nil
}
