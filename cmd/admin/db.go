package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(os.Stdout, db, q, *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] snapshots|chunks|catalogs")
		os.Exit(1)
	}
}

type snapshotRow struct {
	CreatedUnix int64  `json:"created_unix"`
	Path        string `json:"path"`
	WorldID     string `json:"world_id"`
	Seed        int64  `json:"seed"`
	Noise       string `json:"noise"`
	Chunks      int    `json:"chunks"`
}

type chunkRow struct {
	CX          int             `json:"cx"`
	CZ          int             `json:"cz"`
	Digest      string          `json:"digest"`
	Counts      json.RawMessage `json:"counts"`
	MinHeight   int             `json:"min_height"`
	MaxHeight   int             `json:"max_height"`
	GeneratedAt string          `json:"generated_at"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

// runQuery prints one JSON object per row.
func runQuery(w io.Writer, db *sql.DB, q string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var (
		rows *sql.Rows
		err  error
	)
	switch q {
	case "snapshots":
		rows, err = db.Query(`SELECT created_unix,path,world_id,seed,noise,chunks FROM snapshots ORDER BY created_unix DESC LIMIT ?`, limit)
	case "chunks":
		rows, err = db.Query(`SELECT cx,cz,digest,counts_json,min_height,max_height,generated_at FROM chunks ORDER BY cx,cz LIMIT ?`, limit)
	case "catalogs":
		rows, err = db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name LIMIT ?`, limit)
	default:
		return fmt.Errorf("unknown query: %s", q)
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v any
		switch q {
		case "snapshots":
			var r snapshotRow
			err = rows.Scan(&r.CreatedUnix, &r.Path, &r.WorldID, &r.Seed, &r.Noise, &r.Chunks)
			v = r
		case "chunks":
			var r chunkRow
			var counts string
			err = rows.Scan(&r.CX, &r.CZ, &r.Digest, &counts, &r.MinHeight, &r.MaxHeight, &r.GeneratedAt)
			r.Counts = json.RawMessage(counts)
			v = r
		case "catalogs":
			var r catalogRow
			err = rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt)
			v = r
		}
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return rows.Err()
}
