package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
)

// BundleName returns the archive file name of a project.
func BundleName(project string) string {
	return project + "_report_bundle.zip"
}

// WriteBundle zips every regular file in dir, except the archive itself,
// under reports/<project>/ and returns the archive path.
func WriteBundle(dir, project string) (string, error) {
	zipPath := filepath.Join(dir, BundleName(project))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: list artifacts: %w", ErrRender, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.Type().IsRegular() && e.Name() != BundleName(project) {
			names = append(names, e.Name())
		}
	}

	slices.Sort(names)

	out, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("%w: create bundle: %w", ErrRender, err)
	}

	zw := zip.NewWriter(out)

	for _, name := range names {
		addErr := addToZip(zw, filepath.Join(dir, name), path.Join("reports", project, name))
		if addErr != nil {
			zw.Close()
			out.Close()

			return "", addErr
		}
	}

	closeErr := zw.Close()
	if closeErr != nil {
		out.Close()

		return "", fmt.Errorf("%w: finish bundle: %w", ErrRender, closeErr)
	}

	closeErr = out.Close()
	if closeErr != nil {
		return "", fmt.Errorf("%w: close bundle: %w", ErrRender, closeErr)
	}

	return zipPath, nil
}

func addToZip(zw *zip.Writer, src, entry string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrRender, src, err)
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("%w: add %s: %w", ErrRender, entry, err)
	}

	_, err = io.Copy(w, in)
	if err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrRender, entry, err)
	}

	return nil
}
