package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"primsim.ai/internal/sim/wire"
	"primsim.ai/internal/sim/world"
)

// segment is one open hourly file.
type segment struct {
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(path, hour string, level zstd.EncoderLevel) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	// Appending to an existing hour starts a new zstd frame; readers decode
	// concatenated frames as one stream.
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(level))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (s *segment) close() error {
	err := s.buf.Flush()
	if cerr := s.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst. Lines are buffered until Flush.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	level   zstd.EncoderLevel

	now func() time.Time

	mu  sync.Mutex
	seg *segment
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		level:   zstd.SpeedFastest,
		now:     time.Now,
	}
}

// Write appends v as one JSON line to the file of the current UTC hour.
func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	seg, err := w.segmentLocked()
	if err != nil {
		return err
	}
	if _, err := seg.buf.Write(b); err != nil {
		return err
	}
	return seg.buf.WriteByte('\n')
}

// Flush pushes buffered lines through the compressor to the file.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	if err := w.seg.buf.Flush(); err != nil {
		return err
	}
	return w.seg.enc.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

func (w *JSONLZstdWriter) segmentLocked() (*segment, error) {
	hour := w.now().UTC().Format("2006-01-02-15")
	if w.seg != nil && w.seg.hour == hour {
		return w.seg, nil
	}
	if w.seg != nil {
		if err := w.seg.close(); err != nil {
			return nil, err
		}
		w.seg = nil
	}
	seg, err := openSegment(w.pathForHour(hour), hour, w.level)
	if err != nil {
		return nil, err
	}
	w.seg = seg
	return seg, nil
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickRecord is one line of the event log: everything a region reported
// during one tick.
type TickRecord struct {
	Tick uint64 `json:"tick"`

	GroupsAdded   []string `json:"groups_added,omitempty"`
	GroupsMerged  []string `json:"groups_merged,omitempty"`
	GroupsDeleted []string `json:"groups_deleted,omitempty"`

	Links []LinkRecord `json:"links,omitempty"`
	Parts []PartRecord `json:"parts,omitempty"`
}

// LinkRecord is the membership of a group after a structural change.
type LinkRecord struct {
	GroupID string `json:"group_id"`
	Size    int    `json:"size"`
}

// PartRecord folds every field change of one part within a tick.
type PartRecord struct {
	PartID  string `json:"part_id"`
	GroupID string `json:"group_id,omitempty"`
	LinkNum int    `json:"link_num,omitempty"`
	Flags   uint32 `json:"flags"`
	Changed string `json:"changed,omitempty"`
	Count   int    `json:"count"`
}

func (r *TickRecord) empty() bool {
	return len(r.GroupsAdded) == 0 && len(r.GroupsMerged) == 0 && len(r.GroupsDeleted) == 0 &&
		len(r.Links) == 0 && len(r.Parts) == 0
}

// EventLogger batches region events into one TickRecord per tick and writes
// them to <regionDir>/events. It implements world.EventLogger and
// world.TickEnder.
type EventLogger struct {
	w *JSONLZstdWriter

	mu      sync.Mutex
	cur     *TickRecord
	partIdx map[string]int
}

func NewEventLogger(regionDir string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(regionDir, "events"), "events")}
}

func (l *EventLogger) WriteEvent(e world.EventLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur != nil && l.cur.Tick != e.Tick {
		if err := l.writeLocked(); err != nil {
			return err
		}
	}
	if l.cur == nil {
		l.cur = &TickRecord{Tick: e.Tick}
		l.partIdx = map[string]int{}
	}
	l.foldLocked(e)
	return nil
}

func (l *EventLogger) foldLocked(e world.EventLogEntry) {
	groupID := e.GroupID
	if groupID == "" {
		// Deleted and merged groups are named by their former root.
		groupID = e.PartID
	}
	switch e.Kind {
	case "GROUP_ADDED":
		l.cur.GroupsAdded = append(l.cur.GroupsAdded, groupID)
	case "GROUP_REMOVED":
		l.cur.GroupsMerged = append(l.cur.GroupsMerged, groupID)
	case "GROUP_DELETED":
		l.cur.GroupsDeleted = append(l.cur.GroupsDeleted, groupID)
	case "PART_CHANGED":
		if wire.ChangeFlags(e.Flags)&wire.ChangedLink != 0 {
			l.cur.Links = append(l.cur.Links, LinkRecord{GroupID: groupID, Size: e.Size})
			return
		}
		if i, ok := l.partIdx[e.PartID]; ok {
			pr := &l.cur.Parts[i]
			pr.Flags |= e.Flags
			if pr.Flags != 0 {
				pr.Changed = wire.ChangeFlags(pr.Flags).String()
			}
			pr.GroupID, pr.LinkNum = e.GroupID, e.LinkNum
			pr.Count++
			return
		}
		l.partIdx[e.PartID] = len(l.cur.Parts)
		l.cur.Parts = append(l.cur.Parts, PartRecord{
			PartID:  e.PartID,
			GroupID: e.GroupID,
			LinkNum: e.LinkNum,
			Flags:   e.Flags,
			Changed: e.Changed,
			Count:   1,
		})
	}
}

// EndTick writes the batch of tick, if any, and flushes it to disk.
func (l *EventLogger) EndTick(tick uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil || l.cur.Tick > tick {
		return nil
	}
	if err := l.writeLocked(); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *EventLogger) writeLocked() error {
	rec := l.cur
	l.cur, l.partIdx = nil, nil
	if rec == nil || rec.empty() {
		return nil
	}
	return l.w.Write(rec)
}

func (l *EventLogger) Close() error {
	l.mu.Lock()
	err := l.writeLocked()
	l.mu.Unlock()
	if cerr := l.w.Close(); err == nil {
		err = cerr
	}
	return err
}
