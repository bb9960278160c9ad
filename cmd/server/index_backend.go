package main

import (
	"fmt"
	"path/filepath"

	"voxelcraft.ai/advancements/internal/persistence/indexdb"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
	"voxelcraft.ai/advancements/internal/sim/tuning"
	"voxelcraft.ai/advancements/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	world.SessionLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSave(path string, snap snapshot.PlayerV1)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir, backend string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "advancements.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported ADV_INDEX_BACKEND: %s", backend)
	}
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

type multiSessionLogger struct {
	a world.SessionLogger
	b world.SessionLogger
}

func (m multiSessionLogger) WriteSession(entry world.SessionEntry) error {
	if m.a != nil {
		_ = m.a.WriteSession(entry)
	}
	if m.b != nil {
		_ = m.b.WriteSession(entry)
	}
	return nil
}
