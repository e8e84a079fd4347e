package cli

import (
	"github.com/urfave/cli/v2"
)

// NewApp створює новий CLI додаток
func NewApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration file path",
		Value:   "_local.hcl",
		EnvVars: []string{"VIDEOGEN_CONFIG"},
	}
	fromEnvFlag := &cli.BoolFlag{
		Name:  "from-env",
		Usage: "Read configuration from VIDEOGEN_* environment variables instead of a file",
	}

	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "configure",
				Usage: "Generate configuration from template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "template",
						Aliases: []string{"t"},
						Usage:   "Path to HCL template file",
						Value:   "configs/videogen.hcl.tmpl",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output configuration file path",
						Value:   "_local.hcl",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON file with template variables (overrides environment)",
					},
					&cli.StringFlag{
						Name:    "version",
						Aliases: []string{"v"},
						Usage:   "Build version",
						Value:   "dev",
					},
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Configuration mode (local, staging, production)",
						Value:   "local",
					},
				},
				Action: configureAction,
			},
			{
				Name:   "server",
				Usage:  "Start the web server",
				Flags:  []cli.Flag{configFlag, fromEnvFlag},
				Action: serverAction,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations for the postgres profiles backend",
				Flags: []cli.Flag{
					configFlag,
					fromEnvFlag,
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back all migrations",
					},
				},
				Action: migrateAction,
			},
			{
				Name:   "version",
				Usage:  "Show version information",
				Action: versionAction,
			},
		},
	}

	return app
}
