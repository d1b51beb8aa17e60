package assets

import (
	"context"
	"fmt"

	"ar-asset-backend/internal/imagebuf"
	"ar-asset-backend/internal/logging"
	"ar-asset-backend/internal/models"
)

// State is a step of the upload pipeline.
type State string

const (
	StateValidating         State = "validating"
	StateOptimizing         State = "optimizing"
	StateUploadingOriginal  State = "uploading_original"
	StateSynthesizingMarker State = "synthesizing_marker"
	StateUploadingMarker    State = "uploading_marker"
	StateIndexing           State = "indexing"
	StateDone               State = "done"
	StateError              State = "error"
)

// UploadInput is a file as received from the caller. Size is the declared
// length; the larger of Size and len(Data) is checked against MaxUploadSize.
type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Upload stores the original image, tries to synthesize and store a custom
// marker, and indexes the resulting asset.
//
// Only validation, the original upload and indexing can fail the call. Any
// marker failure downgrades the asset to the default preset marker. Blobs
// written before an indexing failure or cancellation are left in place.
func (s *Service) Upload(ctx context.Context, sess Session, in UploadInput) (models.Asset, error) {
	owner, err := sess.owner()
	if err != nil {
		return models.Asset{}, err
	}
	id := s.newID()
	log := s.log.With("owner_id", owner, "asset_id", id)

	step(ctx, log, StateValidating)
	format, err := validate(in)
	if err != nil {
		fail(ctx, log, StateValidating, err)
		return models.Asset{}, err
	}

	data := in.Data
	if len(data) > OptimizeThreshold {
		step(ctx, log, StateOptimizing, "size", len(data))
		data = s.optimize(ctx, log, data, format)
	}

	created := s.now().UTC()
	a := models.Asset{
		ID:         id,
		OwnerID:    owner,
		Name:       in.Name,
		FilePath:   originalPath(owner, id, created.UnixMilli(), format),
		MarkerType: models.MarkerDefaultPreset,
		CreatedAt:  created,
	}

	step(ctx, log, StateUploadingOriginal, "path", a.FilePath)
	a.FileURL, err = s.store.Put(ctx, a.FilePath, data, format.ContentType())
	if err != nil {
		fail(ctx, log, StateUploadingOriginal, err)
		return models.Asset{}, err
	}

	step(ctx, log, StateSynthesizingMarker)
	markerPNG, err := s.synthesize(ctx, data)
	if err != nil {
		log.Warn(ctx, "marker synthesis failed, using preset", "state", StateSynthesizingMarker, "error", err)
	} else {
		path := markerPath(owner, id)
		step(ctx, log, StateUploadingMarker, "path", path)
		url, err := s.store.Put(ctx, path, markerPNG, imagebuf.PNG.ContentType())
		if err != nil {
			log.Warn(ctx, "marker upload failed, using preset", "state", StateUploadingMarker, "error", err)
		} else {
			a.AttachMarker(path, url)
		}
	}
	a.Normalize()

	step(ctx, log, StateIndexing)
	if err := ctx.Err(); err != nil {
		fail(ctx, log, StateIndexing, err)
		return models.Asset{}, err
	}
	if err := s.index.Append(ctx, owner, a); err != nil {
		fail(ctx, log, StateIndexing, err, "orphaned_path", a.FilePath)
		return models.Asset{}, err
	}

	step(ctx, log, StateDone, "marker_type", a.MarkerType)
	s.publish(ctx, owner, EventAssetCreated, map[string]any{
		"asset_id":    a.ID,
		"name":        a.Name,
		"file_url":    a.FileURL,
		"marker_type": a.MarkerType,
	})
	return a, nil
}

// Preview synthesizes a marker for in without storing anything.
func (s *Service) Preview(ctx context.Context, in UploadInput) ([]byte, error) {
	if _, err := validate(in); err != nil {
		return nil, err
	}
	return s.synthesize(ctx, in.Data)
}

func validate(in UploadInput) (imagebuf.Format, error) {
	format, ok := imagebuf.FormatForMIME(in.ContentType)
	if !ok {
		return "", invalid("unsupported content type %q", in.ContentType)
	}
	if len(in.Data) == 0 {
		return "", invalid("empty file")
	}
	size := max(in.Size, int64(len(in.Data)))
	if size > MaxUploadSize {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, size, MaxUploadSize)
	}
	return format, nil
}

// optimize downsizes data to MaxDimension. Undecodable input is passed
// through unchanged; the marker step will report it.
func (s *Service) optimize(ctx context.Context, log logging.Logger, data []byte, format imagebuf.Format) []byte {
	buf, err := imagebuf.Decode(data)
	if err != nil {
		log.Warn(ctx, "optimization skipped", "error", err)
		return data
	}
	resized := imagebuf.Resize(buf, MaxDimension)
	if resized == buf {
		return data
	}
	out, err := imagebuf.Encode(resized, format)
	if err != nil {
		log.Warn(ctx, "optimization skipped", "error", err)
		return data
	}
	log.Info(ctx, "optimized", "from", len(data), "to", len(out), "width", resized.Width(), "height", resized.Height())
	return out
}

// synthesize runs the marker compositor on its own goroutine and waits for
// it or for ctx.
func (s *Service) synthesize(ctx context.Context, data []byte) ([]byte, error) {
	if s.markers == nil {
		return nil, errNoSynthesizer
	}
	type result struct {
		png []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("marker synthesis panicked: %v", r)}
			}
		}()
		png, err := s.markers.ComposeBytes(data)
		done <- result{png: png, err: err}
	}()

	select {
	case r := <-done:
		return r.png, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func originalPath(owner, id string, unixMillis int64, format imagebuf.Format) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s/%s_%d_%s.%s", owner, owner, unixMillis, short, format.Ext())
}

func markerPath(owner, id string) string {
	return fmt.Sprintf("%s/markers/%s.png", owner, id)
}

func step(ctx context.Context, log logging.Logger, state State, args ...any) {
	log.Info(ctx, "asset pipeline", append([]any{"state", state}, args...)...)
}

func fail(ctx context.Context, log logging.Logger, state State, err error, args ...any) {
	log.Error(ctx, "asset pipeline failed", append([]any{"state", StateError, "failed_state", state, "error", err}, args...)...)
}
