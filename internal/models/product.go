package models

import "time"

// Product representa um produto Amazon sendo monitorado por um usuário
type Product struct {
	ID          int64
	ChatID      int64  // Chat do Telegram dono do monitoramento
	ASIN        string // Identificador do produto na Amazon
	Title       string
	URL         string
	TargetPrice float64
	LastPrice   float64   // Zero até a primeira verificação
	LastChecked time.Time // Zero até a primeira verificação
	CreatedAt   time.Time
}

// PriceEntry representa uma observação de preço no histórico de um produto
type PriceEntry struct {
	ID        int64
	ProductID int64
	Price     float64
	CheckedAt time.Time
}
