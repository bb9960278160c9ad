package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
	"voxelcraft.ai/advancements/internal/sim/tuning"
	"voxelcraft.ai/advancements/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the audit and session logs.
// Writes are queued and applied by one goroutine; when the queue is full
// entries are dropped and counted, the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit   atomic.Uint64
	dropSession atomic.Uint64
	dropSave    atomic.Uint64
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropAuditTotal   uint64 `json:"drop_audit_total"`
	DropSessionTotal uint64 `json:"drop_session_total"`
	DropSaveTotal    uint64 `json:"drop_save_total"`
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqSession
	reqSave
)

type req struct {
	kind reqKind

	audit   world.AuditEntry
	session world.SessionEntry
	save    saveRow
}

type saveRow struct {
	PlayerID     string
	Name         string
	Path         string
	SavedAt      int64
	Advancements int
	Criteria     int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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
		ch: make(chan req, queue),
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
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			time INTEGER NOT NULL,
			kind TEXT NOT NULL,
			player_id TEXT NOT NULL,
			player TEXT NOT NULL,
			advancement TEXT NOT NULL,
			criterion TEXT,
			actor TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_player_tick ON audits(player_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_advancement ON audits(advancement, tick);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			time INTEGER NOT NULL,
			kind TEXT NOT NULL,
			player_id TEXT NOT NULL,
			player TEXT NOT NULL,
			locale TEXT,
			reason TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_player ON sessions(player_id, tick);`,
		`CREATE TABLE IF NOT EXISTS saves (
			player_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			advancements INTEGER NOT NULL,
			criteria INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// DB exposes the handle for read queries.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropAuditTotal:   s.dropAudit.Load(),
		DropSessionTotal: s.dropSession.Load(),
		DropSaveTotal:    s.dropSave.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) WriteSession(entry world.SessionEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqSession, session: entry}, &s.dropSession)
	return nil
}

// RecordSave indexes the latest snapshot written for a player.
func (s *SQLiteIndex) RecordSave(path string, snap snapshot.PlayerV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := saveRow{
		PlayerID:     snap.Header.PlayerID,
		Name:         snap.Header.Name,
		Path:         path,
		SavedAt:      snap.Header.SavedAt,
		Advancements: len(snap.Progress),
	}
	for _, crit := range snap.Progress {
		r.Criteria += len(crit)
	}
	s.enqueue(req{kind: reqSave, save: r}, &s.dropSave)
}

// UpsertCatalogs stores the catalogs and tuning the server runs with, keyed
// by content digest.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
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
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
			rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Advancements.Trees); len(b) > 0 {
		rows = append(rows, kv{name: "advancements", digest: cats.Advancements.Digest, json: b})
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
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,time,kind,player_id,player,advancement,criterion,actor,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSession, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(tick,seq,time,kind,player_id,player,locale,reason) VALUES(?,?,?,?,?,?,?,?)`)
	upsertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(player_id,name,path,saved_at,advancements,criteria) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, insertSession, upsertSave} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		// Rows are keyed by (tick, seq); seq restarts every tick.
		auditTick, sessionTick uint64
		auditSeq, sessionSeq   int
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
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// The connection is held by an open tx, so idle batches are committed
	// on a timer to let readers in.
	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-idle.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Tick != auditTick {
				auditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Tick), seq, a.Time, a.Kind, a.PlayerID, a.Player, a.Advancement, a.Criterion, a.Actor, string(raw))

		case reqSession:
			e := r.session
			if e.Tick != sessionTick {
				sessionTick = e.Tick
				sessionSeq = 0
			}
			seq := sessionSeq
			sessionSeq++
			exec(insertSession, int64(e.Tick), seq, e.Time, e.Kind, e.PlayerID, e.Player, e.Locale, e.Reason)

		case reqSave:
			sv := r.save
			exec(upsertSave, sv.PlayerID, sv.Name, sv.Path, sv.SavedAt, sv.Advancements, sv.Criteria)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
}
