package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"valeria/config"
	dbpkg "valeria/db"
	"valeria/memory"
	"valeria/router"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"valeria/workers"
)

func main() {
	// .env é opcional; em produção as vars vêm do ambiente mesmo
	_ = godotenv.Load()

	config.InitLogger()

	configPath := flag.String("config", defaultConfigPath(), "caminho do arquivo de configuração")
	flag.Parse()

	cfg := config.Get(*configPath)
	dbpkg.SetConfigurations(cfg)

	// Os controllers leem esses valores por env; o arquivo de config serve de
	// fallback para deploys sem env injetado.
	setenvDefault("JWT_SECRET", cfg.Security.JwtSecret)
	setenvDefault("WEBHOOK_VERIFY_TOKEN", cfg.WhatsApp.VerifyToken)
	setenvDefault("REFRESH_CODE_LEN", strconv.Itoa(cfg.Security.RefreshCodeLen))
	setenvDefault("REFRESH_MAX_VALID_DAYS", strconv.Itoa(cfg.Security.RefreshCodeMaxValid))

	db, err := dbpkg.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("falha ao conectar no banco")
	}
	defer db.Close()

	store := memory.NewCacheStore()

	r := gin.New()
	r.Use(dbpkg.SetDBtoContext(db))
	r.Use(memory.SetStoreToContext(store))

	router.Initialize(r, cfg)

	workers.StartEventProcessor(db, store)
	workers.StartRepairProcessor(db, store)

	log.Info().Str("port", cfg.ApiPort).Msg("valeria listening")
	if err := r.Run(":" + cfg.ApiPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func defaultConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return "config.json"
}

func setenvDefault(key string, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	if strings.TrimSpace(value) == "" {
		return
	}
	_ = os.Setenv(key, value)
}
