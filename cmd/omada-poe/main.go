package main

import (
	"github.com/larsks/omada-poe/internal/cli"
	"github.com/larsks/omada-poe/internal/daemon"
	_ "github.com/larsks/omada-poe/internal/logsetup"
)

func main() {
	cli.StandardMain(
		"omada-poe",
		func() cli.Configurable { return daemon.NewConfig() },
		daemon.NewHandler(),
	)
}
