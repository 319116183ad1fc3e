package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"bot-precos/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
}

// New cria uma nova instância do banco de dados
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Println("Banco de dados inicializado com sucesso")
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		asin TEXT NOT NULL,
		title TEXT,
		url TEXT,
		target_price REAL NOT NULL,
		last_price REAL DEFAULT 0,
		last_checked DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(chat_id, asin)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		price REAL NOT NULL,
		checked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(product_id) REFERENCES products(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id);
	CREATE INDEX IF NOT EXISTS idx_price_history_checked ON price_history(checked_at);
	`

	_, err := db.conn.Exec(createTableSQL)
	return err
}

// IsDuplicate informa se o erro veio da restrição de unicidade (chat, asin)
func IsDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// AddProduct adiciona um novo produto ao monitoramento de um chat.
// Um produto repetido no mesmo chat viola a restrição UNIQUE(chat_id, asin).
func (db *DB) AddProduct(chatID int64, asin, title, url string, targetPrice float64) (*models.Product, error) {
	result, err := db.conn.Exec(
		"INSERT INTO products (chat_id, asin, title, url, target_price) VALUES (?, ?, ?, ?, ?)",
		chatID, asin, title, url, targetPrice,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetProductByID(id)
}

const productColumns = "id, chat_id, asin, title, url, target_price, last_price, last_checked, created_at"

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var p models.Product
	var lastChecked sql.NullTime
	var lastPrice sql.NullFloat64
	err := row.Scan(&p.ID, &p.ChatID, &p.ASIN, &p.Title, &p.URL, &p.TargetPrice, &lastPrice, &lastChecked, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		p.LastChecked = lastChecked.Time
	}
	if lastPrice.Valid {
		p.LastPrice = lastPrice.Float64
	}
	return &p, nil
}

func (db *DB) queryProducts(query string, args ...interface{}) ([]models.Product, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// GetAllProducts retorna todos os produtos monitorados
func (db *DB) GetAllProducts() ([]models.Product, error) {
	return db.queryProducts("SELECT " + productColumns + " FROM products ORDER BY id")
}

// GetProductsByChat retorna os produtos monitorados por um chat
func (db *DB) GetProductsByChat(chatID int64) ([]models.Product, error) {
	return db.queryProducts("SELECT "+productColumns+" FROM products WHERE chat_id = ? ORDER BY created_at", chatID)
}

// GetProductByID retorna um produto pelo ID
func (db *DB) GetProductByID(id int64) (*models.Product, error) {
	row := db.conn.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	return scanProduct(row)
}

// GetProduct retorna um produto de um chat pelo ASIN
func (db *DB) GetProduct(chatID int64, asin string) (*models.Product, error) {
	row := db.conn.QueryRow("SELECT "+productColumns+" FROM products WHERE chat_id = ? AND asin = ?", chatID, asin)
	return scanProduct(row)
}

// CountProductsByChat conta quantos produtos um chat está monitorando
func (db *DB) CountProductsByChat(chatID int64) (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM products WHERE chat_id = ?", chatID).Scan(&count)
	return count, err
}

// UpdateProductPrice atualiza o último preço de um produto e registra
// a observação no histórico, na mesma transação
func (db *DB) UpdateProductPrice(id int64, price float64, checkedAt time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE products SET last_price = ?, last_checked = ? WHERE id = ?",
		price, checkedAt.UTC(), id,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO price_history (product_id, price, checked_at) VALUES (?, ?, ?)",
		id, price, checkedAt.UTC(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveProduct remove um produto e, via cascade, todo o seu histórico
func (db *DB) RemoveProduct(id int64) error {
	result, err := db.conn.Exec("DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetPriceHistory retorna o histórico de preços de um produto nos últimos N dias
func (db *DB) GetPriceHistory(productID int64, days int) ([]models.PriceEntry, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := db.conn.Query(
		"SELECT id, product_id, price, checked_at FROM price_history WHERE product_id = ? AND checked_at >= ? ORDER BY checked_at",
		productID, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PriceEntry
	for rows.Next() {
		var e models.PriceEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &e.CheckedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneHistory remove observações mais antigas que o horizonte de retenção.
// Retorna quantas linhas foram removidas.
func (db *DB) PruneHistory(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result, err := db.conn.Exec("DELETE FROM price_history WHERE checked_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("erro ao limpar histórico: %w", err)
	}
	return result.RowsAffected()
}

// CountHistoryEntries conta as observações registradas para um produto
func (db *DB) CountHistoryEntries(productID int64) (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM price_history WHERE product_id = ?", productID).Scan(&count)
	return count, err
}
