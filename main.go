package main

import (
	cmd "github.com/telerag/telerag/cmd/telerag"
	"github.com/telerag/telerag/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting telerag")
	cmd.Execute()
}
