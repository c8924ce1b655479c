package main

import (
	"lyrics-engine/internal/app"
	"lyrics-engine/internal/config"
)

func main() {
	cfg := config.Load()
	app := app.New(cfg)
	app.Run()
}
