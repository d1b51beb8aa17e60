package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"ar-asset-backend/internal/index"
)

// DeleteInput names the asset to delete. Empty paths are looked up from the
// index record.
type DeleteInput struct {
	ID           string
	OriginalPath string
	MarkerPath   string
}

// DeleteReport lists the blob removals that failed. The index entry is gone
// whenever Delete returns a nil error.
type DeleteReport struct {
	Warnings []string
}

func (r DeleteReport) Partial() bool { return len(r.Warnings) > 0 }

// Delete removes the asset's blobs, best effort, and then its index entry.
// Deleting an unknown id, or one whose blobs are already gone, succeeds.
func (s *Service) Delete(ctx context.Context, sess Session, in DeleteInput) (DeleteReport, error) {
	var report DeleteReport

	owner, err := sess.owner()
	if err != nil {
		return report, err
	}
	if strings.TrimSpace(in.ID) == "" {
		return report, invalid("asset id is required")
	}
	log := s.log.With("owner_id", owner, "asset_id", in.ID)

	for _, p := range []string{in.OriginalPath, in.MarkerPath} {
		if p != "" && !ownedBy(owner, p) {
			return report, invalid("path %q is outside the owner's folder", p)
		}
	}

	if in.OriginalPath == "" || in.MarkerPath == "" {
		rec, err := s.index.Get(ctx, owner, in.ID)
		switch {
		case err == nil:
			if in.OriginalPath == "" {
				in.OriginalPath = rec.FilePath
			}
			if in.MarkerPath == "" {
				in.MarkerPath = rec.MarkerPath
			}
		case errors.Is(err, index.ErrNotFound):
		case in.OriginalPath == "":
			return report, err
		default:
			log.Warn(ctx, "index lookup failed", "error", err)
		}
	}

	if in.OriginalPath != "" {
		if err := s.store.Delete(ctx, in.OriginalPath); err != nil {
			log.Warn(ctx, "original removal failed", "path", in.OriginalPath, "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("original %s: %v", in.OriginalPath, err))
		}
	}
	if in.MarkerPath != "" {
		if err := s.store.Delete(ctx, in.MarkerPath); err != nil {
			log.Warn(ctx, "marker removal failed", "path", in.MarkerPath, "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("marker %s: %v", in.MarkerPath, err))
		}
	}

	if err := s.index.Remove(ctx, owner, in.ID); err != nil {
		log.Error(ctx, "index removal failed", "error", err)
		return report, err
	}

	log.Info(ctx, "asset deleted", "warnings", len(report.Warnings))
	s.publish(ctx, owner, EventAssetDeleted, map[string]any{"asset_id": in.ID})
	return report, nil
}

// ownedBy reports whether p is a clean object path inside the owner's folder.
func ownedBy(owner, p string) bool {
	if path.Clean(p) != p {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return false
		}
	}
	return strings.HasPrefix(p, owner+"/")
}
