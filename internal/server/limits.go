package server

import (
	"github.com/liquidev/rakugaki/internal/config"
	"github.com/liquidev/rakugaki/internal/haku/compiler"
	"github.com/liquidev/rakugaki/internal/haku/parser"
	"github.com/liquidev/rakugaki/internal/haku/vm"
	"github.com/liquidev/rakugaki/internal/raster"
	"github.com/liquidev/rakugaki/internal/wall"
)

func metaFromConfig(wallID string, cfg *config.Config) wall.Meta {
	return wall.Meta{
		WallID:      wallID,
		ChunkSize:   cfg.ChunkSize,
		PaintArea:   cfg.PaintArea,
		MaxChunks:   cfg.MaxChunks,
		MaxSessions: cfg.MaxSessions,
		HakuLimits: wall.HakuLimitsSnapshot{
			MaxSourceCodeLen:       cfg.HakuLimits.MaxSourceCodeLen,
			MaxSourceChunks:        cfg.HakuLimits.MaxSourceChunks,
			MaxDefs:                cfg.HakuLimits.MaxDefs,
			MaxTokens:              cfg.HakuLimits.MaxTokens,
			MaxParserEvents:        cfg.HakuLimits.MaxParserEvents,
			ASTCapacity:            cfg.HakuLimits.ASTCapacity,
			ChunkCapacity:          cfg.HakuLimits.ChunkCapacity,
			StackCapacity:          cfg.HakuLimits.StackCapacity,
			CallStackCapacity:      cfg.HakuLimits.CallStackCapacity,
			RefCapacity:            cfg.HakuLimits.RefCapacity,
			Fuel:                   cfg.HakuLimits.Fuel,
			Memory:                 cfg.HakuLimits.Memory,
			PixmapStackCapacity:    cfg.HakuLimits.PixmapStackCapacity,
			TransformStackCapacity: cfg.HakuLimits.TransformStackCapacity,
		},
	}
}

func brokerParserLimits(cfg *config.Config) parser.Limits {
	return parser.Limits{
		MaxTokens:       cfg.HakuLimits.MaxTokens,
		MaxParserEvents: cfg.HakuLimits.MaxParserEvents,
		ASTCapacity:     cfg.HakuLimits.ASTCapacity,
	}
}

func brokerCompilerLimits(cfg *config.Config) compiler.Limits {
	return compiler.Limits{
		MaxDefs:       cfg.HakuLimits.MaxDefs,
		ChunkCapacity: cfg.HakuLimits.ChunkCapacity,
	}
}

func brokerVMLimits(cfg *config.Config) vm.Limits {
	return vm.Limits{
		StackCapacity:     cfg.HakuLimits.StackCapacity,
		CallStackCapacity: cfg.HakuLimits.CallStackCapacity,
		RefCapacity:       cfg.HakuLimits.RefCapacity,
		Fuel:              cfg.HakuLimits.Fuel,
		Memory:            cfg.HakuLimits.Memory,
	}
}

func brokerRasterLimits(cfg *config.Config) raster.Limits {
	return raster.Limits{
		PixmapStackCapacity:    cfg.HakuLimits.PixmapStackCapacity,
		TransformStackCapacity: cfg.HakuLimits.TransformStackCapacity,
	}
}
