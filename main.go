package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", "5000", "Port to use")
		configPath := serveCmd.String("config", os.Getenv("ONSET_CONFIG"), "Path to the YAML config (optional)")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port, *configPath)
	default:
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
}
