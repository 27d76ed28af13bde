// Package zip bundles generation outputs into a single archive for the bulk
// download endpoint.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Asset is one generation output to include in the archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs the outputs into a zip. Outputs of one generation can
// share a basename (re-runs, multi-artifact models), so colliding entry names
// get a numeric prefix instead of silently shadowing each other.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := map[string]int{}
	for _, asset := range assets {
		name := asset.Filename
		if n := seen[asset.Filename]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		seen[asset.Filename]++
		w, err := zw.Create(name)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
