// Package extract pulls plain text out of binary document formats so
// file-reading tools can hand them to the model like any other file.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// maxCellsPerSheet bounds spreadsheet output so one workbook cannot
// flood a tool result.
const maxCellsPerSheet = 1000

// Supported reports whether Extract understands the file's extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".xlsx":
		return true
	default:
		return false
	}
}

// Extract returns the text content of a PDF, DOCX, or XLSX file.
func Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(ctx, path)
	case ".docx":
		return docxText(path)
	case ".xlsx":
		return xlsxText(ctx, path)
	default:
		return "", fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
}

func pdfText(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

func docxText(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}

func xlsxText(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheetName := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return strings.Join(parts, "\n\n"), ctx.Err()
		default:
		}

		var sheetText strings.Builder
		sheetText.WriteString(fmt.Sprintf("--- Sheet: %s ---\n", sheetName))

		rows, err := f.GetRows(sheetName)
		if err != nil {
			sheetText.WriteString(fmt.Sprintf("Error reading sheet: %v\n", err))
			parts = append(parts, sheetText.String())
			continue
		}

		cellCount := 0
		for rowIndex, row := range rows {
			if cellCount >= maxCellsPerSheet {
				sheetText.WriteString("... (truncated)\n")
				break
			}
			for colIndex, cell := range row {
				if cellCount >= maxCellsPerSheet {
					break
				}
				if text := strings.TrimSpace(cell); text != "" {
					sheetText.WriteString(fmt.Sprintf("%s%d: %s\n", columnLetter(colIndex), rowIndex+1, text))
					cellCount++
				}
			}
		}

		if text := strings.TrimSpace(sheetText.String()); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// columnLetter converts a 0-based column index to an Excel column letter
// (A, B, ..., Z, AA, AB, ...).
func columnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}
