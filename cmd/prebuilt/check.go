package main

import (
	"context"
	"crypto/sha256"
	"log"

	"github.com/smarty/prebuilt/contracts"
	"github.com/smarty/prebuilt/core"
	"github.com/smarty/prebuilt/shell"
)

func checkMain(ctx context.Context, args []string) int {
	config, err := newConfigLoader().LoadConfig("check", args)
	if err != nil {
		log.Println("[WARN]", err)
		return 1
	}
	installer, err := newInstaller(config)
	if err != nil {
		log.Println("[WARN]", err)
		return 1
	}
	disk := shell.NewDiskFileSystem("")
	integrity := core.NewCompoundIntegrityCheck(
		core.NewFileListingIntegrityChecker(disk),
		core.NewFileContentIntegrityCheck(sha256.New, disk, !config.QuickVerification),
	)
	return NewCheckApp(config.Listing, installer, integrity).Run(ctx)
}

// CheckApp reports whether every package of a listing is installed with the
// expected content. It never writes to the destinations.
type CheckApp struct {
	listing   contracts.Listing
	installer contracts.PackageInstaller
	integrity contracts.IntegrityCheck
}

func NewCheckApp(listing contracts.Listing, installer contracts.PackageInstaller, integrity contracts.IntegrityCheck) *CheckApp {
	return &CheckApp{listing: listing, installer: installer, integrity: integrity}
}

// Run returns 0 when everything is installed, 2 when something is missing
// or different, and 1 when the check itself could not be completed.
func (this *CheckApp) Run(ctx context.Context) (code int) {
	for _, spec := range this.listing.Packages {
		expected, err := this.installer.Describe(ctx, spec)
		if err != nil {
			log.Printf("[WARN] Could not describe %s: %v", spec.Title(), err)
			code = 1
			continue
		}
		if err = this.integrity.Verify(expected); err != nil {
			log.Printf("[INFO] %s is not installed correctly: %v", spec.Title(), err)
			if code == 0 {
				code = 2
			}
			continue
		}
		log.Printf("[INFO] %s is installed.", spec.Title())
	}
	return code
}
