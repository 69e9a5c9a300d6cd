package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/config"
	"github.com/example/comanda/internal/utils"
)

// token mints a terminal token for a restaurant, signed with JWT_SECRET.
func main() {
	restaurant := flag.String("restaurant", "", "restaurant id")
	terminal := flag.String("terminal", "", "terminal name, e.g. kitchen-1")
	flag.Parse()

	cfg := config.Load()

	restaurantID, err := uuid.Parse(*restaurant)
	if err != nil {
		log.Fatalf("invalid -restaurant: %v", err)
	}
	if *terminal == "" {
		log.Fatal("-terminal is required")
	}

	token, err := utils.GenerateTerminalToken(cfg.JWTSecret, utils.TerminalIdentity{
		RestaurantID: restaurantID,
		TerminalID:   *terminal,
	}, cfg.TokenExpires)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
