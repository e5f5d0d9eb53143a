package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/manhwatrack/internal/formatter"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the supported export formats.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ExportOpts contains configuration for library exports.
type ExportOpts struct {
	Format      string              // Export format: json, csv, markdown, txt (default: json)
	OutputDir   string              // Output directory (default: library_export_{epoch})
	Filter      repositories.Filter // Entries to include
	CoverClient *http.Client        // Downloads covers for markdown exports when set
}

// ExportResult describes what an export wrote.
type ExportResult struct {
	Format       string             `json:"format"`
	OutputDir    string             `json:"output_directory"`
	Files        []string           `json:"files"`
	Metadata     formatter.Metadata `json:"metadata"`
	ManifestPath string             `json:"-"`
}

// Export writes the library to opts.OutputDir followed by export_manifest.json.
func (e *LibraryEngine) Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}

	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("library_export_%d", e.now().Unix())
	}

	switch opts.Format {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatText:
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, opts.Format)
	}

	e.sendProgress(progress, loadLibraryUpdate(1, 2))
	entries, err := e.library.Library(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		Format:    opts.Format,
		OutputDir: opts.OutputDir,
		Metadata:  formatter.NewMetadata(entries, e.now().UTC().Truncate(time.Second)),
	}

	e.sendProgress(progress, exportUpdate(2, 2, opts.Format))
	switch opts.Format {
	case FormatCSV:
		res, err := formatter.WriteCSVExport(entries, result.Metadata, filepath.Join(opts.OutputDir, "library"))
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		result.Files = []string{res.LibraryFile, res.MetadataFile}
	case FormatMarkdown:
		res, err := formatter.WriteMarkdownExport(entries, opts.OutputDir, opts.CoverClient)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		result.Files = res.Files
	case FormatText:
		path, err := formatter.WriteTextExport(entries, filepath.Join(opts.OutputDir, "library.txt"))
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		result.Files = []string{path}
	default:
		path, err := formatter.WriteJSONExport(entries, result.Metadata, filepath.Join(opts.OutputDir, "library.json"))
		if err != nil {
			return nil, fmt.Errorf("JSON export failed: %w", err)
		}
		result.Files = []string{path}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}
