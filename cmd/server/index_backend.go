package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"primsim.ai/internal/persistence/indexdb"
	"primsim.ai/internal/persistence/snapshot"
	"primsim.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.EventLogger
	Close() error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func openRuntimeIndex(regionDir string, disabled bool) (runtimeIndex, error) {
	if disabled {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(regionDir, "index", "region.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported PS_INDEX_BACKEND: %s", backend)
	}
}
