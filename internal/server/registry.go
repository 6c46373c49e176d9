package server

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liquidev/rakugaki/internal/broker"
	"github.com/liquidev/rakugaki/internal/config"
	"github.com/liquidev/rakugaki/internal/wall"
)

// registry lazily creates and owns one broker.Actor (and its wall.Store)
// per wall id, so a fresh wall comes into existence the first time any
// client asks to join it (spec.md §4.H).
type registry struct {
	mu    sync.Mutex
	fs    afero.Fs
	root  string
	cfg   *config.Config
	log   *logrus.Entry
	walls map[string]*wallEntry
}

type wallEntry struct {
	store *wall.Store
	actor *broker.Actor
}

func newRegistry(fs afero.Fs, root string, cfg *config.Config, log *logrus.Entry) *registry {
	return &registry{
		fs:    fs,
		root:  root,
		cfg:   cfg,
		log:   log,
		walls: make(map[string]*wallEntry),
	}
}

func (r *registry) get(wallID string) *wallEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.walls[wallID]; ok {
		return e
	}

	wallRoot := r.root + "/" + wallID
	store := wall.New(r.fs, wallRoot, r.cfg.ChunkSize, r.cfg.MaxChunks, r.log)
	if err := wall.WriteMetaIfAbsent(r.fs, wallRoot, metaFromConfig(wallID, r.cfg)); err != nil {
		r.log.WithError(err).WithField("wall", wallID).Warn("failed to persist wall metadata")
	}

	limits := broker.Limits{
		Parser:             brokerParserLimits(r.cfg),
		Compiler:           brokerCompilerLimits(r.cfg),
		VM:                 brokerVMLimits(r.cfg),
		Raster:             brokerRasterLimits(r.cfg),
		ChunkSize:          r.cfg.ChunkSize,
		PaintArea:          r.cfg.PaintArea,
		MaxChunks:          r.cfg.MaxChunks,
		MaxSessions:        r.cfg.MaxSessions,
		OutboundQueueDepth: 64,
	}
	actor := broker.NewActor(wallID, store, limits, r.log.WithField("wall", wallID))
	go actor.Run()

	e := &wallEntry{store: store, actor: actor}
	r.walls[wallID] = e
	return e
}

// closeAll stops every live wall actor, flushing dirty chunks.
func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.walls {
		e.actor.Stop()
	}
}
