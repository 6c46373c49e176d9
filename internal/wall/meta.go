package wall

import (
	"encoding/json"
	"time"

	"github.com/spf13/afero"
)

// HakuLimitsSnapshot mirrors config.HakuLimits without importing the
// config package (wall sits below config in the dependency order); the
// server package is responsible for converting between the two.
type HakuLimitsSnapshot struct {
	MaxSourceCodeLen       int `json:"maxSourceCodeLen"`
	MaxSourceChunks        int `json:"maxChunks"`
	MaxDefs                int `json:"maxDefs"`
	MaxTokens              int `json:"maxTokens"`
	MaxParserEvents        int `json:"maxParserEvents"`
	ASTCapacity            int `json:"astCapacity"`
	ChunkCapacity          int `json:"chunkCapacity"`
	StackCapacity          int `json:"stackCapacity"`
	CallStackCapacity      int `json:"callStackCapacity"`
	RefCapacity            int `json:"refCapacity"`
	Fuel                   int `json:"fuel"`
	Memory                 int `json:"memory"`
	PixmapStackCapacity    int `json:"pixmapStackCapacity"`
	TransformStackCapacity int `json:"transformStackCapacity"`
}

// Meta is the configuration snapshot persisted alongside a wall's chunks
// at db/walls/<wall_id>/meta.json (spec.md §6), written once at wall
// creation. The server does not read it back: a wall opened after a
// restart takes its limits from the current config, not from meta.json.
type Meta struct {
	WallID      string             `json:"wallId"`
	ChunkSize   int                `json:"chunkSize"`
	PaintArea   float64            `json:"paintArea"`
	MaxChunks   int                `json:"maxChunks"`
	MaxSessions int                `json:"maxSessions"`
	HakuLimits  HakuLimitsSnapshot `json:"hakuLimits"`
	CreatedAt   string             `json:"createdAt"`
}

func metaPath(root string) string { return root + "/meta.json" }

// WriteMetaIfAbsent persists meta to root/meta.json the first time a wall
// is created, stamping CreatedAt with the current time. It is a no-op if
// meta.json already exists, since wall configuration is immutable once
// set (spec.md §9).
func WriteMetaIfAbsent(fs afero.Fs, root string, meta Meta) error {
	path := metaPath(root)
	if exists, err := afero.Exists(fs, path); err != nil {
		return err
	} else if exists {
		return nil
	}

	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// ReadMeta loads a previously-written meta.json, if any.
func ReadMeta(fs afero.Fs, root string) (*Meta, error) {
	data, err := afero.ReadFile(fs, metaPath(root))
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
