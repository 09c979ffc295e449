package main

import (
	"log"

	"github.com/JakWai01/sile-fakefs/cmd/sile-fakefs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
