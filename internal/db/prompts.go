package db

import (
	"encoding/csv"
	"os"
	"strings"

	"gorm.io/gorm"
)

type promptRecord struct {
	Category string
	Text     string
}

// LoadPromptSuggestions reads category,text rows from a CSV (header row skipped) and
// upserts them. It returns the number of rows processed.
func LoadPromptSuggestions(conn *gorm.DB, path string) (int, error) {
	if conn == nil {
		return 0, nil
	}
	records, err := readPrompts(path)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, record := range records {
		entry := PromptSuggestion{
			Category: record.Category,
			Text:     record.Text,
		}
		if err := conn.FirstOrCreate(&entry, PromptSuggestion{Category: entry.Category, Text: entry.Text}).Error; err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// RandomPrompts returns up to limit suggestions, optionally restricted to one category.
func RandomPrompts(conn *gorm.DB, category string, limit int) ([]string, error) {
	query := conn.Model(&PromptSuggestion{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var texts []string
	if err := query.Order("RANDOM()").Limit(limit).Pluck("text", &texts).Error; err != nil {
		return nil, err
	}
	return texts, nil
}

func readPrompts(path string) ([]promptRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var records []promptRecord
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		record := promptRecord{}
		if len(row) >= 2 {
			record.Category = strings.ToLower(strings.TrimSpace(row[0]))
			record.Text = strings.TrimSpace(row[1])
		} else {
			record.Text = strings.TrimSpace(row[0])
		}
		if record.Text == "" {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
