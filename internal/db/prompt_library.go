package db

import "time"

type PromptSuggestion struct {
	ID        uint      `gorm:"primaryKey"`
	Category  string    `gorm:"size:32;not null;default:'';uniqueIndex:idx_prompt_suggestions_category_text"`
	Text      string    `gorm:"size:140;not null;uniqueIndex:idx_prompt_suggestions_category_text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
