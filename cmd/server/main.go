package main

import (
	"clinic_inventory_backend/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// console logger until the configuration is read
	if err := utils.InitLogger(utils.DefaultLogConfig()); err != nil {
		panic(err)
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}
	Execute()
}
