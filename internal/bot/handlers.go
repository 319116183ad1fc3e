package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bot-precos/internal/amazon"
	"bot-precos/internal/database"
	"bot-precos/internal/keepa"
	"bot-precos/internal/monitor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Estados da conversa de adição de produto
const (
	stateWaitingURL = iota + 1
	stateWaitingPrice
)

// Conversa abandonada expira depois desse tempo
const conversationTTL = 5 * time.Minute

var asinShape = regexp.MustCompile(`^[A-Z0-9]{10}$`)

type conversation struct {
	state     int
	asin      string
	expiresAt time.Time
}

// Handler processa os comandos do bot e mantém o estado das conversas
// de adição (aguardando link → aguardando preço alvo)
type Handler struct {
	api                *tgbotapi.BotAPI
	monitor            *monitor.Monitor
	maxProductsPerUser int

	// Acessado apenas pela goroutine do loop de updates
	conversations map[int64]*conversation
}

// NewHandler cria o handler de comandos
func NewHandler(api *tgbotapi.BotAPI, m *monitor.Monitor, maxProductsPerUser int) *Handler {
	return &Handler{
		api:                api,
		monitor:            m,
		maxProductsPerUser: maxProductsPerUser,
		conversations:      make(map[int64]*conversation),
	}
}

// Run consome o canal de updates do Telegram até ele ser fechado
func (h *Handler) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := h.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		h.handleMessage(update.Message)
	}
}

// Stop encerra o recebimento de updates
func (h *Handler) Stop() {
	h.api.StopReceivingUpdates()
}

func (h *Handler) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	// Descartar conversa expirada antes de qualquer coisa
	if conv, ok := h.conversations[chatID]; ok && time.Now().After(conv.expiresAt) {
		delete(h.conversations, chatID)
	}

	if strings.HasPrefix(text, "/") {
		h.handleCommand(message, text)
		return
	}

	// Texto sem comando só faz sentido dentro de uma conversa de adição
	if conv, ok := h.conversations[chatID]; ok {
		h.handleConversation(chatID, conv, text)
		return
	}

	h.reply(chatID, "Use /add para monitorar um produto ou /help para ver os comandos.")
}

func (h *Handler) handleCommand(message *tgbotapi.Message, text string) {
	chatID := message.Chat.ID

	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	// Remover @botname se presente
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}

	// Qualquer comando abandona a conversa em andamento, menos /cancel
	// que precisa dela para responder direito
	if command != "/cancel" {
		delete(h.conversations, chatID)
	}

	switch command {
	case "/start", "/help":
		h.handleHelp(chatID)
	case "/add":
		h.handleAdd(chatID, parts)
	case "/list":
		h.handleList(chatID)
	case "/remove":
		h.handleRemove(chatID, parts)
	case "/check":
		h.handleCheck(chatID, parts)
	case "/search":
		h.handleSearch(chatID, parts)
	case "/cancel":
		h.handleCancel(chatID)
	default:
		h.reply(chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
	}
}

func (h *Handler) handleHelp(chatID int64) {
	helpText := `🤖 <b>Bot de Monitoramento de Preços Amazon</b>

<b>Comandos disponíveis:</b>

<b>/add</b> - Adicionar produto para monitorar
Envie o comando e siga as instruções, ou use direto:
/add &lt;link ou ASIN&gt; &lt;preço_alvo&gt;
Exemplo: /add https://www.amazon.it/dp/B08N5WRWNW 29.99

<b>/list</b> - Listar seus produtos monitorados

<b>/remove &lt;ASIN&gt;</b> - Remover produto do monitoramento
Exemplo: /remove B08N5WRWNW

<b>/check &lt;ASIN&gt;</b> - Verificar o preço de um produto agora

<b>/search &lt;palavras&gt;</b> - Buscar produtos por palavra-chave
Exemplo: /search echo dot

<b>/cancel</b> - Cancelar a adição em andamento

<b>/help</b> - Mostrar esta mensagem de ajuda

Aviso quando o preço cair até o seu alvo! 🎯`

	h.replyHTML(chatID, helpText)
}

func (h *Handler) handleAdd(chatID int64, parts []string) {
	count, err := h.monitor.CountForChat(chatID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Erro ao consultar seus produtos: %v", err))
		return
	}
	if count >= h.maxProductsPerUser {
		h.reply(chatID, fmt.Sprintf("⚠️ Você atingiu o limite de %d produtos monitorados.\nRemova algum com /remove antes de adicionar outro.", h.maxProductsPerUser))
		return
	}

	// Forma direta: /add <link> <preço>
	if len(parts) >= 3 {
		asin := parseASIN(parts[1])
		if asin == "" {
			h.reply(chatID, "❌ Link ou ASIN inválido. Envie um link de produto Amazon ou um ASIN de 10 caracteres.")
			return
		}
		price, err := parsePrice(parts[2])
		if err != nil {
			h.reply(chatID, "❌ Preço inválido. Use um valor numérico positivo (ex: 29.99).")
			return
		}
		h.addProduct(chatID, asin, price)
		return
	}

	// Forma conversacional: aguardar o link
	h.conversations[chatID] = &conversation{
		state:     stateWaitingURL,
		expiresAt: time.Now().Add(conversationTTL),
	}
	h.reply(chatID, "📦 Me envie o link do produto Amazon que você quer monitorar (ou /cancel para desistir):")
}

func (h *Handler) handleConversation(chatID int64, conv *conversation, text string) {
	switch conv.state {
	case stateWaitingURL:
		asin := parseASIN(text)
		if asin == "" {
			h.reply(chatID, "❌ Link não reconhecido. Envie um link de produto Amazon válido (ou /cancel para desistir).")
			return
		}
		conv.asin = asin
		conv.state = stateWaitingPrice
		conv.expiresAt = time.Now().Add(conversationTTL)
		h.reply(chatID, "🎯 Agora me diga o preço alvo (ex: 29.99):")

	case stateWaitingPrice:
		price, err := parsePrice(text)
		if err != nil {
			h.reply(chatID, "❌ Preço inválido. Use um número maior que zero (ex: 29.99).")
			return
		}
		asin := conv.asin
		delete(h.conversations, chatID)
		h.addProduct(chatID, asin, price)
	}
}

// addProduct chama o monitor e traduz os erros para mensagens do usuário
func (h *Handler) addProduct(chatID int64, asin string, targetPrice float64) {
	waitMsgID := h.replyAndKeep(chatID, "⏳ Consultando o produto...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	product, info, err := h.monitor.AddProduct(ctx, chatID, asin, targetPrice)
	if err != nil {
		var errText string
		switch {
		case database.IsDuplicate(err):
			errText = "❌ Este produto já está sendo monitorado neste chat."
		case errors.Is(err, keepa.ErrNotFound):
			errText = "❌ Produto não encontrado. Confira o link e tente de novo com /add."
		case errors.Is(err, keepa.ErrUnavailable):
			errText = "❌ A fonte de preços está indisponível no momento. Tente de novo em alguns minutos."
		default:
			errText = fmt.Sprintf("❌ Erro ao adicionar produto: %v", err)
		}
		h.editOrReply(chatID, waitMsgID, errText)
		return
	}

	title := product.Title
	if title == "" {
		title = product.ASIN
	}

	response := fmt.Sprintf(
		"✅ <b>Monitoramento ativado!</b>\n\n"+
			"📦 %s\n"+
			"💰 Preço atual: € %.2f\n"+
			"🎯 Preço alvo: € %.2f\n",
		escapeHTML(title), info.CurrentPrice, targetPrice,
	)
	if info.MinPrice30 > 0 {
		response += fmt.Sprintf("📉 Menor preço (30 dias): € %.2f\n", info.MinPrice30)
	}
	response += fmt.Sprintf("\n🔗 %s\n\nVou te avisar quando o preço cair até o alvo! 🎯", product.URL)

	h.editOrReplyHTML(chatID, waitMsgID, response)
}

func (h *Handler) handleList(chatID int64) {
	products, err := h.monitor.ListProducts(chatID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Erro ao listar produtos: %v", err))
		return
	}

	if len(products) == 0 {
		h.reply(chatID, "📋 Você não está monitorando nenhum produto.\nUse /add para começar!")
		return
	}

	var response strings.Builder
	response.WriteString("📋 <b>Seus produtos monitorados:</b>\n\n")

	for _, p := range products {
		title := p.Title
		if title == "" {
			title = p.ASIN
		}
		response.WriteString(fmt.Sprintf("📦 <b>%s</b>\n", escapeHTML(title)))
		response.WriteString(fmt.Sprintf("🆔 ASIN: %s\n", p.ASIN))

		if p.LastPrice > 0 {
			response.WriteString(fmt.Sprintf("💰 Último preço: € %.2f\n", p.LastPrice))
		} else {
			response.WriteString("💰 Último preço: ainda não verificado\n")
		}

		if p.LastPrice > 0 && p.LastPrice <= p.TargetPrice {
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: € %.2f ✅ <b>ALVO ATINGIDO!</b>\n", p.TargetPrice))
		} else {
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: € %.2f\n", p.TargetPrice))
		}

		if !p.LastChecked.IsZero() {
			response.WriteString(fmt.Sprintf("🕐 Última verificação: %s\n", p.LastChecked.Format("02/01/2006 15:04")))
		} else {
			response.WriteString("🕐 Última verificação: nunca\n")
		}

		response.WriteString(fmt.Sprintf("🔗 %s\n\n", p.URL))
	}

	h.replyHTML(chatID, response.String())
}

func (h *Handler) handleRemove(chatID int64, parts []string) {
	if len(parts) < 2 {
		h.reply(chatID, "❌ Formato incorreto.\n\nUso: /remove <ASIN ou link>\n\nExemplo: /remove B08N5WRWNW")
		return
	}

	asin := parseASIN(parts[1])
	if asin == "" {
		h.reply(chatID, "❌ ASIN inválido.")
		return
	}

	product, err := h.monitor.RemoveProduct(chatID, asin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.reply(chatID, "❌ Produto não encontrado no seu monitoramento.")
		} else {
			h.reply(chatID, fmt.Sprintf("❌ Erro ao remover produto: %v", err))
		}
		return
	}

	title := product.Title
	if title == "" {
		title = product.ASIN
	}
	h.reply(chatID, fmt.Sprintf("✅ Produto removido: %s", title))
}

func (h *Handler) handleCheck(chatID int64, parts []string) {
	if len(parts) < 2 {
		h.reply(chatID, "❌ Formato incorreto.\n\nUso: /check <ASIN ou link>\n\nExemplo: /check B08N5WRWNW")
		return
	}

	asin := parseASIN(parts[1])
	if asin == "" {
		h.reply(chatID, "❌ ASIN inválido.")
		return
	}

	products, err := h.monitor.ListProducts(chatID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Erro ao buscar produto: %v", err))
		return
	}

	found := false
	for _, p := range products {
		if p.ASIN != asin {
			continue
		}
		found = true

		waitMsgID := h.replyAndKeep(chatID, "⏳ Verificando preço...")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		info, err := h.monitor.CheckProduct(ctx, p)
		cancel()
		if err != nil {
			h.editOrReply(chatID, waitMsgID, fmt.Sprintf("❌ Erro ao verificar preço: %v", err))
			break
		}

		title := p.Title
		if title == "" {
			title = p.ASIN
		}
		response := fmt.Sprintf(
			"📊 <b>%s</b>\n\n"+
				"💰 Preço atual: € %.2f\n"+
				"💰 Preço anterior: € %.2f\n"+
				"🎯 Preço alvo: € %.2f\n",
			escapeHTML(title), info.CurrentPrice, p.LastPrice, p.TargetPrice,
		)
		if info.CurrentPrice <= p.TargetPrice {
			response += "\n✅ O produto está no preço alvo!"
		}
		h.editOrReplyHTML(chatID, waitMsgID, response)
		break
	}

	if !found {
		h.reply(chatID, "❌ Produto não encontrado no seu monitoramento. Use /list para ver os seus produtos.")
	}
}

func (h *Handler) handleSearch(chatID int64, parts []string) {
	if len(parts) < 2 {
		h.reply(chatID, "❌ Formato incorreto.\n\nUso: /search <palavras>\n\nExemplo: /search echo dot")
		return
	}
	keyword := strings.Join(parts[1:], " ")

	waitMsgID := h.replyAndKeep(chatID, "⏳ Buscando produtos...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := h.monitor.SearchProducts(ctx, keyword)
	if err != nil {
		if errors.Is(err, keepa.ErrUnavailable) {
			h.editOrReply(chatID, waitMsgID, "❌ A fonte de preços está indisponível no momento. Tente de novo em alguns minutos.")
		} else {
			h.editOrReply(chatID, waitMsgID, fmt.Sprintf("❌ Erro na busca: %v", err))
		}
		return
	}

	if len(results) == 0 {
		h.editOrReply(chatID, waitMsgID, "🔍 Nenhum produto encontrado para essa busca.")
		return
	}

	const maxResults = 5
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("🔍 <b>Resultados para \"%s\":</b>\n\n", escapeHTML(keyword)))
	for _, r := range results {
		response.WriteString(fmt.Sprintf("📦 %s\n", escapeHTML(r.Title)))
		response.WriteString(fmt.Sprintf("🆔 ASIN: %s\n", r.ASIN))
		if r.CurrentPrice > 0 {
			response.WriteString(fmt.Sprintf("💰 Preço atual: € %.2f\n", r.CurrentPrice))
		} else {
			response.WriteString("💰 Sem oferta no momento\n")
		}
		response.WriteString("\n")
	}
	response.WriteString("Para monitorar um deles: /add <ASIN> <preço_alvo>")

	h.editOrReplyHTML(chatID, waitMsgID, response.String())
}

func (h *Handler) handleCancel(chatID int64) {
	if _, ok := h.conversations[chatID]; ok {
		delete(h.conversations, chatID)
		h.reply(chatID, "✅ Adição cancelada.")
		return
	}
	h.reply(chatID, "Nada para cancelar.")
}

// parseASIN aceita um link Amazon ou um ASIN puro de 10 caracteres
func parseASIN(text string) string {
	text = strings.TrimSpace(text)
	if asinShape.MatchString(text) {
		return text
	}
	return amazon.ExtractASIN(text)
}

// parsePrice aceita vírgula ou ponto como separador decimal
func parsePrice(text string) (float64, error) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("preço deve ser maior que zero")
	}
	return price, nil
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Erro ao enviar mensagem: %v", err)
	}
}

func (h *Handler) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Erro ao enviar mensagem com HTML: %v", err)
		// Tentar sem formatação se houver erro
		msg.ParseMode = ""
		h.api.Send(msg)
	}
}

// replyAndKeep envia uma mensagem e retorna o ID para edição posterior
func (h *Handler) replyAndKeep(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := h.api.Send(msg)
	if err != nil {
		log.Printf("Erro ao enviar mensagem: %v", err)
		return 0
	}
	return sent.MessageID
}

func (h *Handler) editOrReply(chatID int64, messageID int, text string) {
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		if _, err := h.api.Send(edit); err == nil {
			return
		}
	}
	h.reply(chatID, text)
}

func (h *Handler) editOrReplyHTML(chatID int64, messageID int, text string) {
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ParseMode = "HTML"
		if _, err := h.api.Send(edit); err == nil {
			return
		}
	}
	h.replyHTML(chatID, text)
}

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
