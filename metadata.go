package eidasmirror

import (
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/metadata"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Re-export domain types.
type DescriptorRecord = domain.DescriptorRecord
type CachedEntry = domain.CachedEntry
type Origin = domain.Origin

const (
	OriginStatic  = domain.OriginStatic
	OriginDynamic = domain.OriginDynamic
)

// Re-export port interfaces.
type MetadataCache = ports.MetadataCache
type MetadataResolver = ports.MetadataResolver
type ChangeListener = ports.ChangeListener

// Re-export metadata adapters and options.
type Cache = metadata.Cache
type FileLoader = metadata.FileLoader
type Resolver = metadata.Resolver
type ResolverConfig = metadata.ResolverConfig
type MetadataOption = metadata.Option
type Clock = metadata.Clock
type RealClock = metadata.RealClock

var (
	NewCache            = metadata.NewCache
	NewFileLoader       = metadata.NewFileLoader
	NewResolver         = metadata.NewResolver
	ParseDescriptors    = metadata.ParseDescriptors
	WithMetadataLogger  = metadata.WithLogger
	WithClock           = metadata.WithClock
	WithHTTPClient      = metadata.WithHTTPClient
	WithRescanInterval  = metadata.WithRescanInterval
	WithFetchTimeout    = metadata.WithFetchTimeout
	WithMaxFetchBytes   = metadata.WithMaxFetchBytes
	WithOnReload        = metadata.WithOnReload
	WithMetricsRecorder = metadata.WithMetricsRecorder
)
