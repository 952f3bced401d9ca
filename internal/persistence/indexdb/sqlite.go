package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/tuning"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

// SQLiteIndex is a read model of generated chunks and snapshots. Writes are
// queued and applied by one goroutine; the sim never waits on the database.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders enqueue sends against closing ch.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type reqKind int

const (
	reqChunk reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	chunk    ChunkRow
	snapshot snapshotRow
}

// ChunkRow is one indexed chunk.
type ChunkRow struct {
	CX          int
	CZ          int
	Digest      string
	Counts      map[string]int
	MinHeight   int
	MaxHeight   int
	GeneratedAt string
}

type snapshotRow struct {
	CreatedUnix int64
	Path        string
	WorldID     string
	Seed        int64
	Noise       string
	Chunks      int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			digest TEXT NOT NULL,
			counts_json TEXT NOT NULL,
			min_height INTEGER NOT NULL,
			max_height INTEGER NOT NULL,
			generated_at TEXT NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_digest ON chunks(digest);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			created_unix INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			noise TEXT NOT NULL,
			chunks INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits, and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped reports how many writes were discarded because the queue was full.
func (s *SQLiteIndex) Dropped() int64 {
	return s.dropped.Load()
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The generation log remains the source of truth.
		s.dropped.Add(1)
	}
}

// ChunkGenerated implements store.GenerationObserver.
func (s *SQLiteIndex) ChunkGenerated(sum store.ChunkSummary) {
	s.RecordChunk(sum)
}

func (s *SQLiteIndex) RecordChunk(sum store.ChunkSummary) {
	s.enqueue(req{kind: reqChunk, chunk: ChunkRow{
		CX:          sum.CX,
		CZ:          sum.CZ,
		Digest:      sum.Digest,
		Counts:      sum.Counts,
		MinHeight:   sum.MinHeight,
		MaxHeight:   sum.MaxHeight,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		CreatedUnix: snap.Header.CreatedUnix,
		Path:        path,
		WorldID:     snap.Header.WorldID,
		Seed:        snap.Seed,
		Noise:       snap.Noise,
		Chunks:      len(snap.Chunks),
	}})
}

// UpsertCatalogs stores the block catalog and the applied tuning. It runs
// synchronously, outside the write queue.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.BlockCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.SortedDefs()); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_defs", digest: cats.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LookupChunk reads an indexed chunk. Queued writes may not be visible yet.
func (s *SQLiteIndex) LookupChunk(ctx context.Context, cx, cz int) (ChunkRow, bool, error) {
	r := ChunkRow{CX: cx, CZ: cz}
	var counts string
	err := s.db.QueryRowContext(ctx,
		`SELECT digest,counts_json,min_height,max_height,generated_at FROM chunks WHERE cx=? AND cz=?`, cx, cz,
	).Scan(&r.Digest, &counts, &r.MinHeight, &r.MaxHeight, &r.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
		return r, false, fmt.Errorf("chunk (%d,%d) counts: %w", cx, cz, err)
	}
	return r, true, nil
}

func (s *SQLiteIndex) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(cx,cz,digest,counts_json,min_height,max_height,generated_at) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(created_unix,path,world_id,seed,noise,chunks) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertChunk != nil {
			_ = insertChunk.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 512
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqChunk:
			c := r.chunk
			counts, _ := json.Marshal(c.Counts)
			if insertChunk != nil {
				if _, err := tx.Stmt(insertChunk).Exec(c.CX, c.CZ, c.Digest, string(counts), c.MinHeight, c.MaxHeight, c.GeneratedAt); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(sn.CreatedUnix, sn.Path, sn.WorldID, sn.Seed, sn.Noise, sn.Chunks); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
