package main

import (
	"os"

	apicmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "chatrelayapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatrelay/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
