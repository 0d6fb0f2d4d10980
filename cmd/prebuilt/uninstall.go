package main

import (
	"log"

	"github.com/smarty/prebuilt/core"
	"github.com/smarty/prebuilt/shell"
)

func uninstallMain(args []string) (code int) {
	config, err := newConfigLoader().LoadConfig("uninstall", args)
	if err != nil {
		log.Println("[WARN]", err)
		return 1
	}
	disk := shell.NewDiskFileSystem("")
	for _, spec := range config.Listing.Packages {
		if err = core.Uninstall(spec, disk.Remove); err != nil {
			log.Printf("[WARN] %s: %v", spec.Title(), err)
			code = 1
			continue
		}
		log.Printf("[INFO] %s uninstalled.", spec.Title())
	}
	return code
}
