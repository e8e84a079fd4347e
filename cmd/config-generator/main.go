package main

import (
	"log"
	"os"

	"github.com/sabalioglu/vidgen/internal/build"
	"github.com/sabalioglu/vidgen/internal/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "videogen"
	app.Version = build.Version
	app.Usage = "VideoGen web server with configuration management"

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
