package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"bot-precos/config"
	"bot-precos/internal/amazon"
	"bot-precos/internal/bot"
	"bot-precos/internal/database"
	"bot-precos/internal/keepa"
	"bot-precos/internal/monitor"
	"bot-precos/internal/notifier"
	"bot-precos/internal/ratelimit"

	"github.com/joho/godotenv"
)

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações (credenciais ausentes são fatais aqui,
	// antes do loop de monitoramento começar)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializar banco de dados
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Erro ao inicializar banco de dados: %v", err)
	}
	defer db.Close()

	// Inicializar bot do Telegram
	api, err := bot.Init(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("Erro ao inicializar bot do Telegram: %v", err)
	}

	// Cliente da API de preços e rate limiter de janela deslizante
	keepaClient := keepa.New(cfg.KeepaAPIKey, cfg.KeepaDomain)
	limiter := ratelimit.New(cfg.MaxRequestsPerMinute)

	// Criar gerenciador de monitoramento
	monitorInstance := monitor.New(
		db,
		keepaClient,
		notifier.New(api, cfg.TelegramChatID),
		limiter,
		monitor.NewCooldownGate(cfg.NotificationCooldown),
		amazon.NewScraper(),
		monitor.Config{
			Interval:      cfg.CheckInterval,
			BatchSize:     cfg.BatchSize,
			RetentionDays: cfg.HistoryRetentionDays,
			Domain:        cfg.KeepaDomain,
		},
	)

	// Iniciar monitoramento em background
	monitorInstance.Start()

	// Configurar e rodar os comandos do bot
	handler := bot.NewHandler(api, monitorInstance, cfg.MaxProductsPerUser)
	go handler.Run()

	// Aguardar sinal de interrupção
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Encerrando bot...")
	handler.Stop()
	monitorInstance.Stop()
}
