// Command reportbot runs the monthly ministry report questionnaire bot.
package main

import (
	"fmt"
	"log"

	_ "time/tzdata"

	corecmd "github.com/jakovchuk/socalska-report-bot/core/cmd"
	"github.com/jakovchuk/socalska-report-bot/report/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			c, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.Bootstrap(c)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
