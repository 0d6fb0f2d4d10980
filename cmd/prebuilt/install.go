package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/smarty/prebuilt/contracts"
)

func installMain(ctx context.Context, args []string) int {
	config, err := newConfigLoader().LoadConfig("install", args)
	if err != nil {
		log.Println("[WARN]", err)
		return 1
	}
	if len(config.Listing.Packages) == 0 {
		log.Println("[WARN] No packages provided. You can go about your business. Move along.")
		emitExampleListing()
		return 0
	}
	installer, err := newInstaller(config)
	if err != nil {
		log.Println("[WARN]", err)
		return 1
	}
	if NewInstallApp(config.Listing, installer).Run(ctx) > 0 {
		return 1
	}
	return 0
}

// InstallApp installs every package of a listing concurrently and reports
// each failure.
type InstallApp struct {
	listing   contracts.Listing
	installer contracts.PackageInstaller
	waiter    *sync.WaitGroup
	results   chan contracts.InstallResult
}

func NewInstallApp(listing contracts.Listing, installer contracts.PackageInstaller) *InstallApp {
	waiter := new(sync.WaitGroup)
	waiter.Add(len(listing.Packages))
	return &InstallApp{
		listing:   listing,
		installer: installer,
		waiter:    waiter,
		results:   make(chan contracts.InstallResult),
	}
}

func (this *InstallApp) Run(ctx context.Context) (failed int) {
	for _, spec := range this.listing.Packages {
		go this.install(ctx, spec)
	}
	go this.awaitCompletion()
	for result := range this.results {
		if result.Succeeded() {
			log.Println("[INFO]", result)
		} else {
			failed++
			log.Println("[WARN]", result)
		}
	}
	return failed
}

func (this *InstallApp) awaitCompletion() {
	this.waiter.Wait()
	close(this.results)
}

func (this *InstallApp) install(ctx context.Context, spec contracts.InstallSpec) {
	defer this.waiter.Done()

	log.Printf("Installing package: %s", spec.Title())
	result, _ := this.installer.Install(ctx, spec)
	this.results <- result
}

func emitExampleListing() {
	source, _ := contracts.ParseURL("https://github.com/unum-cloud/usearch/releases/download/v2.9.0/usearch_macOS.zip")
	listing := contracts.Listing{Packages: []contracts.InstallSpec{{
		Name:      "usearch",
		Version:   "2.9.0",
		SourceURL: source,
		Checksum:  "sha256:<hex digest of the archive>",
		Format:    contracts.FormatZip,
		Entries: []contracts.EntryMapping{
			{Name: "libusearch_c.a", Destination: "/usr/local/lib/libusearch_c.a"},
			{Name: "usearch.h", Destination: "/usr/local/include/usearch.h"},
		},
	}}}
	raw, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		log.Print(err)
	}
	log.Print("Example listing:\n", string(raw))
}
