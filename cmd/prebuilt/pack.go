package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/smarty/prebuilt/archive"
	"github.com/smarty/prebuilt/contracts"
	"github.com/smarty/prebuilt/core"
	"github.com/smarty/prebuilt/shell"
)

func packMain(args []string) int {
	config, err := newConfigLoader().LoadPackConfig(args)
	if err != nil {
		log.Println("[WARN]", err)
		return 1
	}
	checksum, contents, err := pack(config)
	if err != nil {
		log.Println("[WARN]", err)
		_ = os.Remove(config.OutputPath)
		return 1
	}

	entries := make([]contracts.EntryMapping, 0, len(contents))
	for _, item := range contents {
		entries = append(entries, contracts.EntryMapping{Name: item.Name, Destination: "/usr/local/" + item.Name, Executable: item.Executable})
	}
	raw, _ := json.MarshalIndent(struct {
		Checksum string                   `json:"checksum"`
		Format   contracts.ArchiveFormat  `json:"format"`
		Entries  []contracts.EntryMapping `json:"entries"`
		Contents []core.PackedEntry       `json:"contents"`
	}{
		Checksum: "sha256:" + checksum,
		Format:   config.Format,
		Entries:  entries,
		Contents: contents,
	}, "", "  ")
	log.Printf("[INFO] Wrote %s:\n%s", config.OutputPath, raw)
	return 0
}

func pack(config contracts.PackConfig) (checksum string, contents []core.PackedEntry, err error) {
	file, err := os.Create(config.OutputPath)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = file.Close() }()

	hasher := sha256.New()
	writer, err := archive.NewWriter(io.MultiWriter(file, hasher), config.Format, config.Level)
	if err != nil {
		return "", nil, err
	}
	builder := core.NewPackageBuilder(shell.NewDiskFileSystem(config.SourceDirectory), writer, sha256.New)
	if err = builder.Build(); err != nil {
		return "", nil, err
	}
	if err = file.Close(); err != nil {
		return "", nil, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), builder.Contents(), nil
}
