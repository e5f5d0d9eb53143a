// package formatter exports a reading library to CSV, Markdown, plain text, and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Metadata summarizes an export.
type Metadata struct {
	ExportedAt time.Time      `json:"exported_at"`
	Entries    int            `json:"entries"`
	ByStatus   map[string]int `json:"by_status"`
}

// NewMetadata counts entries per status.
func NewMetadata(entries []models.EntryWithProgress, now time.Time) Metadata {
	m := Metadata{ExportedAt: now.UTC(), Entries: len(entries), ByStatus: map[string]int{}}
	for _, e := range entries {
		m.ByStatus[string(e.Status())]++
	}
	return m
}

// Document is the JSON export layout.
type Document struct {
	Metadata Metadata                   `json:"metadata"`
	Entries  []models.EntryWithProgress `json:"entries"`
}

var csvHeaders = []string{"ID", "Catalog ID", "Title", "Status", "Last Chapter", "Total Chapters", "Rating", "Notes", "Updated"}

// WriteCSV writes one row per entry.
func WriteCSV(w io.Writer, entries []models.EntryWithProgress) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.ID,
			e.CatalogID,
			e.Title,
			string(e.Status()),
			strconv.Itoa(e.Chapter()),
			optionalInt(e.TotalChapters),
			"",
			"",
			e.LastActivity().UTC().Format(time.RFC3339),
		}
		if e.Progress != nil {
			record[6] = optionalInt(e.Progress.Rating)
			record[7] = e.Progress.Notes
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ExportToCSV converts entries to CSV.
func ExportToCSV(entries []models.EntryWithProgress) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders entries grouped by status. covers maps entry IDs to local image paths;
// entries without one link their remote cover URL.
func ExportToMarkdown(entries []models.EntryWithProgress, title string, covers map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Reading Library"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Titles**: %d\n\n", len(entries))

	for _, status := range models.Statuses {
		var group []models.EntryWithProgress
		for _, e := range entries {
			if e.Status() == status {
				group = append(group, e)
			}
		}
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(&buf, "## %s (%d)\n\n", status.Label(), len(group))
		for i, e := range group {
			fmt.Fprintf(&buf, "%d. **%s** [%s]", i+1, e.Title, ChapterLabel(e))
			if e.Progress != nil && e.Progress.Rating != nil {
				fmt.Fprintf(&buf, " ★ %d/10", *e.Progress.Rating)
			}
			buf.WriteString("\n")

			cover := covers[e.ID]
			if cover == "" {
				cover = e.CoverURL
			}
			if cover != "" {
				fmt.Fprintf(&buf, "   ![%s](%s)\n", e.Title, cover)
			}
			if e.Progress != nil && e.Progress.Notes != "" {
				fmt.Fprintf(&buf, "   > %s\n", e.Progress.Notes)
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders one line per entry.
func ExportToText(entries []models.EntryWithProgress) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Titles: %d\n\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", i+1, e.Title, e.Status().Label(), ChapterLabel(e))
	}

	return buf.Bytes(), nil
}

// ChapterLabel formats reading progress as "Ch. 12/179" or "Ch. 12".
func ChapterLabel(e models.EntryWithProgress) string {
	if e.TotalChapters != nil {
		return fmt.Sprintf("Ch. %d/%d", e.Chapter(), *e.TotalChapters)
	}
	return fmt.Sprintf("Ch. %d", e.Chapter())
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// DownloadImage downloads an image with client and returns the raw bytes.
//
// Passing the offline worker's client lets exports reuse cached covers.
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON renders export metadata.
func ToMetadataJSON(meta Metadata) ([]byte, error) {
	return shared.MarshalJSON(meta, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	LibraryFile  string
	MetadataFile string
}

// WriteCSVExport writes {base}_library.csv and {base}_metadata.json.
func WriteCSVExport(entries []models.EntryWithProgress, meta Metadata, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "library"
	}

	csvData, err := ExportToCSV(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	libraryFile := baseFilepath + "_library.csv"
	if err := os.WriteFile(libraryFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{LibraryFile: libraryFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Covers    int
}

// WriteMarkdownExport writes {dir}/README.md. With a non-nil client, covers are downloaded into
// {dir}/covers/ and referenced locally; failed downloads fall back to the remote URL.
func WriteMarkdownExport(entries []models.EntryWithProgress, outputDir string, client *http.Client) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = "library"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}
	covers := map[string]string{}

	if client != nil {
		coverDir := filepath.Join(outputDir, "covers")
		for _, e := range entries {
			if e.CoverURL == "" {
				continue
			}
			data, err := DownloadImage(client, e.CoverURL)
			if err != nil {
				continue
			}
			if err := os.MkdirAll(coverDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create cover directory: %w", err)
			}
			path := filepath.Join(coverDir, e.ID+".jpg")
			if err := os.WriteFile(path, data, 0644); err != nil {
				continue
			}
			covers[e.ID] = "covers/" + e.ID + ".jpg"
			result.Files = append(result.Files, path)
			result.Covers++
		}
	}

	mdData, err := ExportToMarkdown(entries, "", covers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport writes the plain text export to path (default library.txt).
func WriteTextExport(entries []models.EntryWithProgress, path string) (string, error) {
	if path == "" {
		path = "library.txt"
	}

	textData, err := ExportToText(entries)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes entries and metadata as one JSON document.
func WriteJSONExport(entries []models.EntryWithProgress, meta Metadata, path string) (string, error) {
	if path == "" {
		path = "library.json"
	}
	if entries == nil {
		entries = []models.EntryWithProgress{}
	}

	data, err := shared.MarshalJSON(Document{Metadata: meta, Entries: entries}, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
