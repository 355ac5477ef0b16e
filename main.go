package main

import (
	"fmt"

	"github.com/kfsoftware/agritrace/cmd"
	"github.com/kfsoftware/agritrace/pkg/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)

	viper.SetConfigName(config.FileName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer)
	viper.AutomaticEnv()
	viper.AddConfigPath(".") // optionally look for config in the working directory

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		log.Warnf("No %s.yaml found, using defaults and environment", config.FileName)
	} else if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	cmd.Execute()
}
