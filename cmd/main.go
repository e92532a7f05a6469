package main

import (
	"log"
	"os"
	"path"

	"github.com/spf13/viper"

	"github.com/wicketvision/drs-tracker/pkg/api"
	"github.com/wicketvision/drs-tracker/pkg/store"
	"github.com/wicketvision/drs-tracker/pkg/track"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error: Could not read config file, got '%v'", err)
	}

	//create missing data directories from config file
	for _, key := range []string{"directory.root", "directory.source", "directory.ready"} {
		dir := viper.GetString(key)
		if dir == "" {
			log.Fatalf("Error: Missing critical configuration '%s'", key)
		}
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0766); err != nil {
					log.Printf("Error creating '%s' directory, got '%v'", dir, err)
				}
			}
		}
	}

	cfg := track.ConfigFromViper()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error: Invalid tracking configuration, got '%v'", err)
	}

	st, err := store.Open(path.Join(viper.GetString("directory.root"), "drs.db"))
	if err != nil {
		log.Fatalf("Error: Could not open store, got '%v'", err)
	}
	defer st.Close()

	r := api.SetRouter(st, cfg)
	if err := r.Run(":" + viper.GetString("http.port")); err != nil {
		log.Fatalf("Error: Got '%v'", err)
	}
}
