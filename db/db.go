package db

import (
	"os"

	"valeria/config"
	"valeria/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/rs/zerolog/log"
)

var conf config.Configuration

func SetConfigurations(configuration config.Configuration) {
	conf = configuration
}

// Connect abre conexão com DB (sqlite3 por padrão) e faz automigrate básico.
// Para habilitar automigrate em ambientes de dev, exporte AUTOMIGRATE=1.
func Connect() (*gorm.DB, error) {
	database := conf.Database
	if database == "" {
		database = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	if database == "postgres" || database == "postgresql" {
		log.Info().Msg("Utilizando conexão com o postgresql...")
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass
		db, err = gorm.Open("postgres", path)
	} else {
		log.Info().Msg("Utilizando conexão com o sqlite3...")
		db, err = gorm.Open("sqlite3", "db/database.db")
	}

	if err != nil {
		log.Error().Err(err).Msg("Got error when connect database")
		return nil, err
	}

	if getenv("AUTOMIGRATE", "0") == "1" {
		AutoMigrate(db)
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) {
	db.AutoMigrate(
		&models.Client{},
		&models.Customer{},
		&models.Appointment{},
		&models.Event{},
		&models.RefreshToken{},
		&models.MessageRepair{},
	)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
