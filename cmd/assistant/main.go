package main

import (
	"os"

	"openchat/assistant/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
