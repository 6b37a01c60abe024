package models

import "launchpad-backend/internal/contracts"

// TokenMetadata off-chain description of a token
type TokenMetadata struct {
	Name        string  `json:"name"`
	Symbol      string  `json:"symbol"`
	Description string  `json:"description,omitempty"`
	Image       *string `json:"image"`
	Website     string  `json:"website,omitempty"`
	X           string  `json:"x,omitempty"`
	Telegram    string  `json:"telegram,omitempty"`
}

// TokenView everything the presentation layer shows for one token
type TokenView struct {
	Address         string               `json:"address"`
	URI             string               `json:"uri"`
	Symbol          string               `json:"symbol"`
	Info            *contracts.TokenInfo `json:"info"`
	Progress        string               `json:"progress"`
	ProgressPercent float64              `json:"progressPercent"`
	Launched        bool                 `json:"launched"`
	Metadata        TokenMetadata        `json:"metadata"`
	MarketCap       string               `json:"marketCap"`
	Index           int                  `json:"index"` // creation order
}
