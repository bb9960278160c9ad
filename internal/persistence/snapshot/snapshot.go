package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	// SavedAt is unix milliseconds.
	SavedAt int64 `json:"saved_at"`
}

// PlayerV1 is everything persisted for one player: advancement key to
// criterion id to achieve time in unix milliseconds.
type PlayerV1 struct {
	Header      Header                      `json:"header"`
	Progress    map[string]map[string]int64 `json:"progress"`
	SelectedTab string                      `json:"selected_tab"`
}

// WriteSnapshot writes a zstd stream holding a JSON header line followed by
// the gob-encoded snapshot. The file is replaced atomically.
func WriteSnapshot(path string, snap PlayerV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap PlayerV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (PlayerV1, error) {
	var snap PlayerV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// Store keeps one snapshot file per player under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".snap.zst")
}

// Load returns the saved snapshot for id. A player that was never saved
// yields ok=false and no error.
func (s *Store) Load(id uuid.UUID) (PlayerV1, bool, error) {
	snap, err := ReadSnapshot(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PlayerV1{}, false, nil
		}
		return PlayerV1{}, false, err
	}
	return snap, true, nil
}

func (s *Store) Save(id uuid.UUID, snap PlayerV1) (string, error) {
	snap.Header.Version = Version
	snap.Header.PlayerID = id.String()
	path := s.Path(id)
	return path, WriteSnapshot(path, snap)
}

// List returns the ids of every saved player, sorted.
func (s *Store) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []uuid.UUID
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".snap.zst")
		if !ok || e.IsDir() {
			continue
		}
		id, err := uuid.Parse(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Drain saves every snapshot received on ch until ch is closed. done, when
// set, is called after each save with its outcome.
func (s *Store) Drain(ch <-chan PlayerV1, done func(path string, snap PlayerV1, err error)) {
	for snap := range ch {
		id, err := uuid.Parse(snap.Header.PlayerID)
		path := ""
		if err == nil {
			path, err = s.Save(id, snap)
		}
		if done != nil {
			done(path, snap, err)
		}
	}
}
