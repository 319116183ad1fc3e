package notifier

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bot-precos/internal/keepa"
	"bot-precos/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Notifier envia os alertas de preço pelo Telegram.
// O limiter respeita o limite de envio da API do Telegram (~30 msg/s),
// separado do rate limit da API de preços.
type Notifier struct {
	bot            *tgbotapi.BotAPI
	fallbackChatID int64
	limiter        *rate.Limiter
}

// New cria um notificador. fallbackChatID (opcional) recebe os alertas
// de produtos sem chat dono, ex: monitoramentos de canal.
func New(bot *tgbotapi.BotAPI, fallbackChatID int64) *Notifier {
	return &Notifier{
		bot:            bot,
		fallbackChatID: fallbackChatID,
		limiter:        rate.NewLimiter(rate.Limit(25), 5),
	}
}

// NotifyPriceDrop envia o alerta de preço alvo atingido para o dono do produto
func (n *Notifier) NotifyPriceDrop(product models.Product, info *keepa.ProductInfo) error {
	chatID := product.ChatID
	if chatID == 0 {
		chatID = n.fallbackChatID
	}
	if chatID == 0 {
		return fmt.Errorf("produto %d sem chat de destino", product.ID)
	}

	title := product.Title
	if title == "" {
		title = product.ASIN
	}

	var b strings.Builder
	b.WriteString("🎯 <b>Preço alvo atingido!</b>\n\n")
	b.WriteString(fmt.Sprintf("📦 <b>%s</b>\n\n", escapeHTML(title)))
	b.WriteString(fmt.Sprintf("💰 Preço atual: € %.2f\n", info.CurrentPrice))
	b.WriteString(fmt.Sprintf("🎯 Preço alvo: € %.2f\n", product.TargetPrice))
	if info.MinPrice30 > 0 {
		b.WriteString(fmt.Sprintf("📉 Menor preço (30 dias): € %.2f\n", info.MinPrice30))
	}
	if product.URL != "" {
		b.WriteString(fmt.Sprintf("\n🔗 <a href=\"%s\">Ver na Amazon</a>", product.URL))
	}

	return n.send(chatID, b.String())
}

func (n *Notifier) send(chatID int64, text string) error {
	if err := n.limiter.Wait(context.Background()); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("Erro ao enviar notificação com HTML: %v", err)
		// Tentar sem formatação se houver erro
		msg.ParseMode = ""
		if _, err2 := n.bot.Send(msg); err2 != nil {
			return fmt.Errorf("erro ao enviar notificação: %w", err2)
		}
	}
	return nil
}

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
