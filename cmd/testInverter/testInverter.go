package main

import (
	"context"
	"fmt"
	"os"
	"time"

	samillogger "github.com/sam-413/SamilLogger"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	configFile := flag.StringP("config", "c", "", "config file")
	count := flag.IntP("count", "n", 10, "number of readings to print")
	flag.Parse()

	cfg, err := samillogger.LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("Fatal error in config file")
	}

	fmt.Printf("Connect to: %s\n", cfg.InverterAddr())

	inv := &samillogger.SolarEdgeModbus{SlaveID: cfg.InverterSlaveID()}
	inv.Host = cfg.Viper().GetString("inverter.host")
	inv.Port = uint16(cfg.Viper().GetInt("inverter.port"))
	defer inv.Close()

	if err := inv.AllRegDump(os.Stdout); err != nil {
		log.WithError(err).Fatal("register dump failed")
	}

	pollms := cfg.PollInterval()
	for j := 0; j < *count; j++ {
		r, err := inv.Read(context.Background())
		if err != nil {
			log.WithError(err).Warn("read failed")
		} else {
			fmt.Printf("Power out = %8.5g W, DC = %8.5g V, Temp = %5.3g ℃, Today = %.1f kWh, online = %v\n",
				r.Power, r.PVVoltage(), r.Temperature, r.DailyEnergy, r.Online)
		}
		time.Sleep(pollms)
	}
}
