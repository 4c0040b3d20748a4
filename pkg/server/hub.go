package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/auravis/auravis/pkg/buffer"
	"github.com/auravis/auravis/pkg/encoding"
	"github.com/auravis/auravis/pkg/jsontime"
	"github.com/auravis/auravis/pkg/kv"
	"github.com/auravis/auravis/pkg/projector"
	"github.com/auravis/auravis/pkg/storage"
	"github.com/auravis/auravis/pkg/viz"
)

// DefaultSessionID is the session addressed by REST routes that do not name
// one, so single-client deployments never have to mint IDs.
const DefaultSessionID = "default"

// Sentinel errors.
var (
	// ErrSessionNotFound is returned for operations addressing a session
	// that does not exist.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrNotTrained is returned when a snapshot is requested from a session
	// whose projector has no trained model yet.
	ErrNotTrained = errors.New("server: session has no trained model")

	// ErrNoSnapshotStore is returned by snapshot operations when the hub was
	// built without a snapshot store.
	ErrNoSnapshotStore = errors.New("server: no snapshot store configured")

	// ErrNoExportStore is returned by Export when the hub was built without
	// an export store.
	ErrNoExportStore = errors.New("server: no export store configured")
)

// snapshotPrefix is where projector snapshots live in the KV store.
var snapshotPrefix = kv.Key{"viz", "snapshot"}

// Hub owns the session registry and the stores around it: projector
// snapshots in a [kv.Store], export archives in a [storage.FileStore], and a
// ring of recent frames per session for exports and monitor catch-up.
//
// Snapshots auto-restore: when a session is created under an ID that has a
// persisted model, the model is installed before the first chunk arrives.
type Hub struct {
	logger       *slog.Logger
	metrics      *Metrics
	snaps        *kv.Bucket[projector.Snapshot]
	exports      storage.FileStore
	frameHistory int
	managerOpts  []viz.ManagerOption

	sessions *viz.Manager

	// mu guards the maps below. It is never held across calls into
	// sessions, whose end hook locks it.
	mu      sync.Mutex
	frames  map[string]*buffer.Ring[viz.Frame]
	trained map[string]bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSnapshotStore sets the KV store that persists projector snapshots.
// Without one, snapshot operations fail and sessions never auto-restore.
func WithSnapshotStore(store kv.Store) HubOption {
	return func(h *Hub) {
		if store != nil {
			h.snaps = kv.NewBucket[projector.Snapshot](store, snapshotPrefix)
		}
	}
}

// WithExportStore sets the file store that receives session archives.
func WithExportStore(fs storage.FileStore) HubOption {
	return func(h *Hub) {
		h.exports = fs
	}
}

// WithFrameHistory sets how many recent frames are retained per session
// (default 256).
func WithFrameHistory(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.frameHistory = n
		}
	}
}

// WithManagerOptions passes extra options to the session registry, for
// example idle timeout and sweep interval.
func WithManagerOptions(opts ...viz.ManagerOption) HubOption {
	return func(h *Hub) {
		h.managerOpts = append(h.managerOpts, opts...)
	}
}

// NewHub creates a Hub whose sessions run the given pipeline config.
func NewHub(cfg viz.SessionConfig, opts ...HubOption) *Hub {
	h := &Hub{
		logger:       slog.Default(),
		metrics:      NewMetrics(),
		frameHistory: 256,
		frames:       make(map[string]*buffer.Ring[viz.Frame]),
		trained:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}

	mopts := []viz.ManagerOption{
		viz.WithManagerLogger(h.logger),
		viz.WithOnCreate(h.sessionCreated),
		viz.WithOnEnd(h.sessionEnded),
	}
	mopts = append(mopts, h.managerOpts...)
	h.sessions = viz.NewManager(cfg, mopts...)
	return h
}

// Metrics returns the hub's instrument set.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// sessionCreated runs under the registry lock before the new session
// handles any audio.
func (h *Hub) sessionCreated(id string, s *viz.Session) {
	h.metrics.ActiveSessions.Inc()
	if h.snaps == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := h.snaps.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		h.logger.Warn("server: snapshot load failed", "id", id, "err", err)
		return
	}
	if err := s.Restore(snap); err != nil {
		h.logger.Warn("server: snapshot restore failed", "id", id, "err", err)
		return
	}
	// A restored model must not count as a completed training run.
	h.mu.Lock()
	h.trained[id] = true
	h.mu.Unlock()
	h.logger.Info("server: restored model snapshot", "id", id, "backend", snap.Backend)
}

// sessionEnded runs after a session is closed and removed, whether ended
// explicitly or expired by the janitor.
func (h *Hub) sessionEnded(id string) {
	h.metrics.ActiveSessions.Dec()
	h.mu.Lock()
	delete(h.frames, id)
	delete(h.trained, id)
	h.mu.Unlock()
}

// Process feeds one PCM16LE mono chunk to a session, creating the session
// on first use, and returns the resulting frame along with the session ID
// (minted when the given one was blank).
func (h *Hub) Process(id string, chunk []byte) (*viz.Frame, string) {
	start := time.Now()
	s, id := h.sessions.GetOrCreate(id)
	frame := s.ProcessChunk(chunk)
	h.metrics.RecordChunk(time.Since(start))
	h.metrics.RecordFrame()

	h.mu.Lock()
	ring, ok := h.frames[id]
	if !ok {
		ring = buffer.NewRing[viz.Frame](h.frameHistory)
		h.frames[id] = ring
	}
	justTrained := frame.Trained && !h.trained[id]
	h.trained[id] = frame.Trained
	h.mu.Unlock()

	ring.Add(*frame)
	if justTrained {
		h.metrics.RecordTraining(TrainingCompleted)
		h.logger.Info("server: session model trained", "id", id)
	}
	return frame, id
}

// Status returns registry info for one session.
func (h *Hub) Status(id string) (viz.SessionInfo, error) {
	info, ok := h.sessions.Info(id)
	if !ok {
		return viz.SessionInfo{}, ErrSessionNotFound
	}
	return info, nil
}

// List returns registry info for every session, sorted by ID.
func (h *Hub) List() []viz.SessionInfo {
	return h.sessions.List()
}

// Reset clears a session's rolling window, smoothing state, frame counter
// and retained frame history. When resetModel is set the projector model
// and collected training material are discarded too.
func (h *Hub) Reset(id string, resetModel bool) error {
	s, ok := h.sessions.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.Reset(resetModel)

	h.mu.Lock()
	if ring, ok := h.frames[id]; ok {
		ring.Reset()
	}
	if resetModel {
		h.trained[id] = false
	}
	h.mu.Unlock()

	h.logger.Info("server: session reset", "id", id, "model", resetModel)
	return nil
}

// Train asks a session's projector to start training early. It reports
// whether training was accepted; the projector refuses when it is not
// untrained or has too few samples.
func (h *Hub) Train(id string) (bool, error) {
	s, ok := h.sessions.Get(id)
	if !ok {
		return false, ErrSessionNotFound
	}
	started := s.ForceTrain()
	if started {
		h.metrics.RecordTraining(TrainingAccepted)
	} else {
		h.metrics.RecordTraining(TrainingRefused)
	}
	return started, nil
}

// Frames returns up to n of a session's most recent frames, oldest first.
// n <= 0 returns everything retained.
func (h *Hub) Frames(id string, n int) []viz.Frame {
	h.mu.Lock()
	ring := h.frames[id]
	h.mu.Unlock()
	if ring == nil {
		return nil
	}
	if n <= 0 {
		return ring.Snapshot()
	}
	return ring.Tail(n)
}

// SaveSnapshot persists a session's trained model so a future session under
// the same ID starts projecting immediately.
func (h *Hub) SaveSnapshot(ctx context.Context, id string) error {
	if h.snaps == nil {
		return ErrNoSnapshotStore
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	snap, ok := s.Snapshot()
	if !ok {
		return ErrNotTrained
	}
	if err := h.snaps.Set(ctx, id, snap); err != nil {
		return fmt.Errorf("server: save snapshot: %w", err)
	}
	h.logger.Info("server: saved model snapshot", "id", id, "backend", snap.Backend)
	return nil
}

// DeleteSnapshot removes a session's persisted model. No error if absent.
func (h *Hub) DeleteSnapshot(ctx context.Context, id string) error {
	if h.snaps == nil {
		return ErrNoSnapshotStore
	}
	if err := h.snaps.Delete(ctx, id); err != nil {
		return fmt.Errorf("server: delete snapshot: %w", err)
	}
	return nil
}

// End closes and removes a session. It reports whether one existed.
func (h *Hub) End(id string) bool {
	return h.sessions.End(id)
}

// Close ends every session and stops the registry. The snapshot and export
// stores belong to the caller and stay open.
func (h *Hub) Close() {
	h.sessions.Close()
}

// Export is the manifest returned after a session archive is written.
type Export struct {
	Path   string           `json:"path" yaml:"path"`
	SHA256 encoding.HexData `json:"sha256" yaml:"sha256"`
	Bytes  int64            `json:"bytes" yaml:"bytes"`
	Frames int              `json:"frames" yaml:"frames"`
}

// exportDoc is the JSON document written to the export store.
type exportDoc struct {
	ExportedAt jsontime.Milli    `json:"exported_at"`
	Session    viz.SessionInfo   `json:"session"`
	Config     viz.SessionConfig `json:"config"`
	Frames     []viz.Frame       `json:"frames"`
}

// Export archives a session's status and retained frames as one JSON file
// in the export store and returns the path with the content digest.
func (h *Hub) Export(ctx context.Context, id string) (*Export, error) {
	if h.exports == nil {
		return nil, ErrNoExportStore
	}
	info, ok := h.sessions.Info(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	doc := exportDoc{
		ExportedAt: jsontime.NowEpochMilli(),
		Session:    info,
		Config:     s.Config(),
		Frames:     h.Frames(id, 0),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("server: export encode: %w", err)
	}
	sum := sha256.Sum256(raw)

	path := fmt.Sprintf("exports/%s/%s.json", id, time.Now().UTC().Format("20060102T150405Z"))
	w, err := h.exports.Write(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("server: export open: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("server: export write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("server: export close: %w", err)
	}

	h.logger.Info("server: exported session", "id", id, "path", path, "bytes", len(raw))
	return &Export{
		Path:   path,
		SHA256: sum[:],
		Bytes:  int64(len(raw)),
		Frames: len(doc.Frames),
	}, nil
}
