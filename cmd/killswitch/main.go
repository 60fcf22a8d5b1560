// Command killswitch toggles the trading kill switch. Trading is allowed
// only while the flag file exists; removing it is the emergency stop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"fxpilot/internal/safety"
)

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("KILL_SWITCH_FILE")
	if defaultPath == "" {
		defaultPath = "TRADING_ENABLED.flag"
	}

	path := flag.String("file", defaultPath, "kill switch flag file")
	enable := flag.Bool("enable", false, "enable trading")
	disable := flag.Bool("disable", false, "disable trading (emergency stop)")
	flag.Parse()

	kill := safety.NewFileKillSwitch(*path)

	switch {
	case *enable && *disable:
		log.Fatal("choose one of -enable or -disable")
	case *enable:
		if err := kill.Enable(); err != nil {
			log.Fatalf("failed to enable trading: %v", err)
		}
		fmt.Println("trading ENABLED")
	case *disable:
		if err := kill.Disable(); err != nil {
			log.Fatalf("failed to disable trading: %v", err)
		}
		fmt.Println("trading DISABLED")
	default:
		if kill.IsEnabled() {
			fmt.Println("trading is ENABLED")
		} else {
			fmt.Println("trading is DISABLED")
		}
	}
}
