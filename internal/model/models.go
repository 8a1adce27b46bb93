package model

import (
	"time"
)

type GenerationRun struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	RunID             string     `json:"run_id" gorm:"size:64;uniqueIndex"` // UUID
	Agency            string     `json:"agency" gorm:"size:20;not null;index"`
	CompanyName       string     `json:"company_name" gorm:"size:255"`
	GrantType         string     `json:"grant_type" gorm:"size:255"`
	Status            string     `json:"status" gorm:"size:50;default:pending"` // pending, queued, running, succeeded, failed, canceled
	Iterations        int        `json:"iterations" gorm:"default:1"`
	CompanyJSON       string     `json:"-" gorm:"type:text"` // inline company override, empty means profile file
	TotalSections     int        `json:"total_sections" gorm:"default:0"`
	CompletedSections int        `json:"completed_sections" gorm:"default:0"`
	Progress          int        `json:"progress" gorm:"default:0"` // 0-100
	TotalWords        int        `json:"total_words" gorm:"default:0"`
	TotalCost         float64    `json:"total_cost" gorm:"default:0"`
	GenerationSeconds float64    `json:"generation_seconds" gorm:"default:0"`
	ErrorMsg          string     `json:"error_msg" gorm:"size:2000"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (GenerationRun) TableName() string {
	return "generation_runs"
}

type Proposal struct {
	ID                uint              `json:"id" gorm:"primaryKey"`
	RunID             uint              `json:"run_id" gorm:"index;not null"`
	CompanyName       string            `json:"company_name" gorm:"size:255;not null"`
	GrantType         string            `json:"grant_type" gorm:"size:255"`
	TotalWordCount    int               `json:"total_word_count" gorm:"default:0"`
	TotalCost         float64           `json:"total_cost" gorm:"default:0"`
	GenerationSeconds float64           `json:"generation_seconds" gorm:"default:0"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Sections          []ProposalSection `json:"sections,omitempty" gorm:"foreignKey:ProposalID"`
}

func (Proposal) TableName() string {
	return "proposals"
}

type ProposalSection struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	ProposalID      uint      `json:"proposal_id" gorm:"index;not null"`
	Slot            string    `json:"slot" gorm:"size:50;not null"` // project_pitch, technical_objectives, ...
	Name            string    `json:"name" gorm:"size:255;not null"`
	Content         string    `json:"content" gorm:"type:text"`
	WordCount       int       `json:"word_count" gorm:"default:0"`
	Iteration       int       `json:"iteration" gorm:"default:0"`
	Critique        string    `json:"critique" gorm:"type:text"`
	RefinementNotes string    `json:"refinement_notes" gorm:"size:500"`
	SortOrder       int       `json:"sort_order" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (ProposalSection) TableName() string {
	return "proposal_sections"
}

type UsageRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RunID        uint      `json:"run_id" gorm:"index;not null"`
	Section      string    `json:"section" gorm:"size:255;not null"`
	Operation    string    `json:"operation" gorm:"size:20;not null"` // generate, critique, refine
	InputTokens  int       `json:"input_tokens" gorm:"default:0"`
	OutputTokens int       `json:"output_tokens" gorm:"default:0"`
	TotalTokens  int       `json:"total_tokens" gorm:"default:0"`
	Model        string    `json:"model" gorm:"size:255"`
	CostUSD      float64   `json:"cost_usd" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
