package main

import (
	"github.com/smarty/prebuilt/archive"
	"github.com/smarty/prebuilt/contracts"
	"github.com/smarty/prebuilt/core"
	"github.com/smarty/prebuilt/shell"
)

func newInstaller(config contracts.InstallConfig) (*core.Installer, error) {
	if config.UserAgent == "" {
		config.UserAgent = "prebuilt/" + ldflagsSoftwareVersion
	}
	fetcher := core.NewRetryFetcher(shell.NewHTTPFetcher(shell.NewHTTPClient(), config), config.MaxRetry)

	var signatures contracts.SignatureVerifier
	if config.KeyringPath != "" {
		keyring, err := core.LoadKeyring(config.KeyringPath)
		if err != nil {
			return nil, err
		}
		signatures = core.NewSignatureVerifier(fetcher, keyring)
	}

	return core.NewInstaller(
		fetcher,
		core.NewChecksumVerifier(),
		signatures,
		archive.NewExtractor(),
		shell.NewDiskFileSystem(""),
		core.NewDestinationLocks(),
		config.MaxEntrySize,
	), nil
}
