package excel

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/lessonbot/pkg/models"
)

// Curriculum is the slice of the lesson store the importer needs.
type Curriculum interface {
	List(ctx context.Context) ([]models.Lesson, error)
	Create(ctx context.Context, title string, content json.RawMessage) (*models.Lesson, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	TitleColumn   string // Column with the lesson title
	ContentColumn string // Column with the lesson content
	SheetName     string // Name of the sheet to import
	SkipHeader    bool   // Skip the header row
	StartRow      int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TitleColumn:   "A",
		ContentColumn: "B",
		SheetName:     "Sheet1",
		SkipHeader:    true,
		StartRow:      2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// ImportLessons appends lessons from an Excel or CSV file to the end of
// the curriculum. Rows whose title already exists are skipped, so
// re-importing the same file is safe.
func ImportLessons(ctx context.Context, store Curriculum, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))

	if ext == ".csv" {
		return importFromCSV(ctx, store, config)
	}

	return importFromExcel(ctx, store, config)
}

// importFromExcel imports lessons from an Excel file
func importFromExcel(ctx context.Context, store Curriculum, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	result := &ImportResult{
		Errors: make([]string, 0),
	}

	existing, err := existingTitles(ctx, store)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %v", err)
	}

	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}

		result.TotalProcessed++

		if err := processRow(ctx, store, row, config, existing, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}

	return result, nil
}

// importFromCSV imports lessons from a CSV file
func importFromCSV(ctx context.Context, store Curriculum, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{
		Errors: make([]string, 0),
	}

	existing, err := existingTitles(ctx, store)
	if err != nil {
		return nil, err
	}

	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %v", err)
		}

		rowNum++

		// Пропускаем заголовок
		if rowNum < config.StartRow {
			continue
		}

		result.TotalProcessed++

		var title, content string
		if len(row) > 0 {
			title = row[0]
		}
		if len(row) > 1 {
			content = strings.Join(row[1:], " | ")
		}

		if err := createLesson(ctx, store, title, content, existing, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}

	return result, nil
}

// processRow processes a single row from Excel
func processRow(ctx context.Context, store Curriculum, row []string, config ImportConfig,
	existing map[string]bool, result *ImportResult) error {
	var title, content string

	if colIdx := columnToIndex(config.TitleColumn); colIdx < len(row) {
		title = row[colIdx]
	}
	if colIdx := columnToIndex(config.ContentColumn); colIdx < len(row) {
		content = row[colIdx]
	}

	return createLesson(ctx, store, title, content, existing, result)
}

// createLesson handles the common logic for creating a lesson from any source
func createLesson(ctx context.Context, store Curriculum, title, content string,
	existing map[string]bool, result *ImportResult) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("lesson title cannot be empty")
	}

	if existing[strings.ToLower(title)] {
		result.Skipped++
		return nil
	}

	if _, err := store.Create(ctx, title, contentPayload(content)); err != nil {
		return fmt.Errorf("failed to create lesson: %v", err)
	}

	existing[strings.ToLower(title)] = true
	result.Created++
	return nil
}

// existingTitles returns the lowercased titles already in the catalog.
func existingTitles(ctx context.Context, store Curriculum) (map[string]bool, error) {
	lessons, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing lessons: %v", err)
	}
	existing := make(map[string]bool, len(lessons))
	for _, lesson := range lessons {
		existing[strings.ToLower(lesson.Title)] = true
	}
	return existing, nil
}

// contentPayload turns a cell into the lesson payload. Cells that
// already hold JSON pass through untouched, anything else becomes a
// plain text payload.
func contentPayload(cell string) json.RawMessage {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if json.Valid([]byte(cell)) {
		return json.RawMessage(cell)
	}
	data, err := json.Marshal(map[string]string{"text": cell})
	if err != nil {
		return nil
	}
	return data
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
