// Package assets orchestrates the upload and delete life cycle of an asset:
// the original image, its synthesized marker and its index record.
package assets

import (
	"context"
	"errors"
	"strings"
	"time"

	"ar-asset-backend/internal/index"
	"ar-asset-backend/internal/logging"
	"ar-asset-backend/internal/models"
	"ar-asset-backend/internal/storage"

	"github.com/google/uuid"
)

const (
	MaxUploadSize     = 5 << 20
	OptimizeThreshold = 2 << 20
	MaxDimension      = 1024

	DefaultPreset = "hiro"

	// ViewerPatternType is the viewer marker type for custom markers.
	ViewerPatternType = "pattern"
)

// Event names published after successful mutations.
const (
	EventAssetCreated = "asset_created"
	EventAssetDeleted = "asset_deleted"
)

// Session identifies the caller. It is passed explicitly into every call.
type Session struct {
	OwnerID string
}

func (s Session) owner() (string, error) {
	id := strings.TrimSpace(s.OwnerID)
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}

// AssetIndex is the per-owner record store the service mutates.
type AssetIndex interface {
	Append(ctx context.Context, ownerID string, a models.Asset) error
	List(ctx context.Context, ownerID string) ([]models.Asset, error)
	Get(ctx context.Context, ownerID, id string) (models.Asset, error)
	Remove(ctx context.Context, ownerID, id string) error
	Clear(ctx context.Context, ownerID string) error
	Ping(ctx context.Context) error
}

// MarkerSynthesizer turns encoded image bytes into an encoded PNG marker.
type MarkerSynthesizer interface {
	ComposeBytes(data []byte) ([]byte, error)
}

// EventPublisher notifies listeners about asset changes. Failures are logged
// and otherwise ignored.
type EventPublisher interface {
	PublishAssetEvent(ctx context.Context, ownerID, event string, payload map[string]any) error
}

type Service struct {
	store   storage.ObjectStore
	index   AssetIndex
	markers MarkerSynthesizer
	events  EventPublisher
	log     logging.Logger
	preset  string
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMarkerPreset sets the viewer marker type used for assets without a
// custom marker.
func WithMarkerPreset(preset string) Option {
	return func(s *Service) {
		if preset != "" {
			s.preset = preset
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store storage.ObjectStore, idx AssetIndex, markers MarkerSynthesizer, opts ...Option) *Service {
	s := &Service{
		store:   store,
		index:   idx,
		markers: markers,
		log:     logging.Nop{},
		preset:  DefaultPreset,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the caller's assets, newest first.
func (s *Service) List(ctx context.Context, sess Session) ([]models.Asset, error) {
	owner, err := sess.owner()
	if err != nil {
		return nil, err
	}
	return s.index.List(ctx, owner)
}

// Clear drops the caller's whole index. Stored blobs are left alone.
func (s *Service) Clear(ctx context.Context, sess Session) error {
	owner, err := sess.owner()
	if err != nil {
		return err
	}
	if err := s.index.Clear(ctx, owner); err != nil {
		return err
	}
	s.log.Warn(ctx, "asset index cleared", "owner_id", owner)
	return nil
}

func (s *Service) PublicURL(path string) string {
	return s.store.PublicURL(path)
}

// Viewer describes how the AR viewer should track and render an asset.
func (s *Service) Viewer(ctx context.Context, sess Session, id string) (models.ViewerResponse, error) {
	owner, err := sess.owner()
	if err != nil {
		return models.ViewerResponse{}, err
	}
	a, err := s.index.Get(ctx, owner, id)
	if errors.Is(err, index.ErrNotFound) {
		return models.ViewerResponse{}, ErrNotFound
	}
	if err != nil {
		return models.ViewerResponse{}, err
	}

	v := models.ViewerResponse{
		AssetID:    a.ID,
		AssetName:  a.Name,
		AssetURL:   a.FileURL,
		MarkerType: s.preset,
	}
	if a.HasMarker() {
		v.MarkerType = ViewerPatternType
		v.MarkerURL = a.MarkerURL
	}
	return v, nil
}

// Ping checks that the index backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.index.Ping(ctx)
}

func (s *Service) publish(ctx context.Context, owner, event string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishAssetEvent(ctx, owner, event, payload); err != nil {
		s.log.Warn(ctx, "publish asset event", "owner_id", owner, "event", event, "error", err)
	}
}
