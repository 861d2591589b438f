package main

import (
	"parley/cmd"
	"parley/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
