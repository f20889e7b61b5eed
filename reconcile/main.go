package main

import (
	"github.com/joho/godotenv"

	"github.com/howeyc/reconcile/reconcile/cmd"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
