package geo

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LoadChargers reads existing charger locations from a point shapefile, or
// from a ZIP archive containing one. Coordinates must be WGS84 lon/lat.
// Non-point shapes contribute the center of their bounding box.
func LoadChargers(path string) ([]orb.Point, error) {
	log := zap.L().With(zap.String("component", "geo.loader"))

	shpPath := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp("", "chargers-*")
		if err != nil {
			return nil, eris.Wrap(err, "geo: create extract dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		if err := extractZIP(path, dir); err != nil {
			return nil, eris.Wrap(err, "geo: extract charger ZIP")
		}
		shpPath, err = findFileByExt(dir, ".shp")
		if err != nil {
			return nil, eris.Wrap(err, "geo: find .shp file")
		}
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	var (
		points  []orb.Point
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shapePoint(shape)
		if !ok {
			skipped++
			continue
		}
		points = append(points, p)
	}

	log.Info("charger shapefile loaded",
		zap.String("path", path),
		zap.Int("chargers", len(points)),
		zap.Int("skipped", skipped),
	)
	return points, nil
}

// shapePoint reduces a shapefile shape to a single lon/lat point.
func shapePoint(s shp.Shape) (orb.Point, bool) {
	switch p := s.(type) {
	case nil:
		return orb.Point{}, false
	case *shp.Point:
		return orb.Point{p.X, p.Y}, true
	case *shp.PointZ:
		return orb.Point{p.X, p.Y}, true
	case *shp.PointM:
		return orb.Point{p.X, p.Y}, true
	}
	box := s.BBox()
	if box.MinX > box.MaxX || box.MinY > box.MaxY {
		return orb.Point{}, false
	}
	return orb.Point{(box.MinX + box.MaxX) / 2, (box.MinY + box.MaxY) / 2}, true
}

// extractZIP extracts the regular files of a ZIP archive into destDir.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}
		out, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}
		_, err = io.Copy(out, rc)
		_ = out.Close()
		_ = rc.Close()
		if err != nil {
			return eris.Wrapf(err, "extract %s", f.Name)
		}
	}
	return nil
}

// findFileByExt returns the first file in dir with the given extension.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrapf(err, "read dir %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
