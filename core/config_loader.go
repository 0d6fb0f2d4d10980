package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/smarty/prebuilt/contracts"
)

const stdinPath = "_STDIN_"

type ConfigLoader struct {
	parser  CredentialParser
	storage contracts.FileReader
	stdin   io.Reader
	stderr  io.Writer
}

func NewConfigLoader(storage contracts.FileReader, env contracts.Environment, stdin io.Reader, stderr io.Writer) *ConfigLoader {
	return &ConfigLoader{
		parser:  NewGoogleCredentialParser(storage, env),
		storage: storage,
		stdin:   stdin,
		stderr:  stderr,
	}
}

// LoadConfig parses the flags of the install, check and uninstall commands
// and reads the listing they point at. Non-flag arguments name the packages
// to act on.
func (this *ConfigLoader) LoadConfig(name string, args []string) (config contracts.InstallConfig, err error) {
	config, err = this.parseCLI(name, args)
	if err != nil {
		return contracts.InstallConfig{}, err
	}

	err = this.validateFlags(config)
	if err != nil {
		return contracts.InstallConfig{}, err
	}

	config.Listing, err = this.parseListing(config.SpecPath)
	if err != nil {
		return contracts.InstallConfig{}, err
	}

	err = config.Listing.Validate()
	if err != nil {
		return contracts.InstallConfig{}, err
	}

	err = this.validatePackageFilter(config)
	if err != nil {
		return contracts.InstallConfig{}, err
	}
	config.Listing.Packages = Filter(config.Listing.Packages, config.PackageFilter)

	if config.Listing.RequiresGoogleCredentials() {
		config.GoogleCredentials, err = this.parser.Parse()
		if err != nil {
			return contracts.InstallConfig{}, err
		}
	}

	return config, nil
}

func (this *ConfigLoader) parseCLI(name string, args []string) (config contracts.InstallConfig, err error) {
	flags := pflag.NewFlagSet("prebuilt "+name, pflag.ContinueOnError)
	flags.SetOutput(this.stderr)
	flags.StringVar(&config.SpecPath,
		"spec",
		stdinPath,
		"Path to the package listing (JSON, or YAML for .yaml/.yml) or, if equal to _STDIN_, read from stdin.",
	)
	flags.IntVar(&config.MaxRetry,
		"max-retry",
		contracts.DefaultMaxRetry,
		"How many times to retry transient download failures.",
	)
	flags.DurationVar(&config.Timeout,
		"timeout",
		contracts.DefaultTimeout,
		"Deadline for each download attempt.",
	)
	flags.Int64Var(&config.MaxArtifactSize,
		"max-size",
		contracts.DefaultMaxArtifactSize,
		"Largest archive (in bytes) that will be downloaded.",
	)
	flags.Int64Var(&config.MaxEntrySize,
		"max-entry-size",
		contracts.DefaultMaxEntrySize,
		"Largest archive entry (in bytes) that will be installed.",
	)
	flags.StringVar(&config.KeyringPath,
		"keyring",
		"",
		"OpenPGP public keyring (armored or binary) used to check signature_url signatures.",
	)
	flags.BoolVar(&config.QuickVerification,
		"quick",
		false,
		"When set, only compare file listings (not contents) when checking installed packages.",
	)
	flags.StringVar(&config.TempDirectory,
		"temp-dir",
		"",
		"Directory for downloaded archives (defaults to the system temp directory).",
	)
	flags.Usage = func() {
		_, _ = fmt.Fprintf(this.stderr, "Usage of prebuilt %s:\n", name)
		flags.PrintDefaults()
		_, _ = fmt.Fprintln(this.stderr, `
  Package names may be passed as non-flag arguments and will serve as a filter
  against the provided listing.

exit code 0: success
exit code 1: general failure (see stderr for details)
exit code 2: package is not installed correctly (check only)`)
	}
	err = flags.Parse(args)
	config.PackageFilter = flags.Args()

	return config, err
}

// LoadPackConfig parses the flags of the pack command.
func (this *ConfigLoader) LoadPackConfig(args []string) (config contracts.PackConfig, err error) {
	var format string
	flags := pflag.NewFlagSet("prebuilt pack", pflag.ContinueOnError)
	flags.SetOutput(this.stderr)
	flags.StringVar(&config.SourceDirectory, "source", "", "Directory whose files are archived.")
	flags.StringVar(&config.OutputPath, "output", "", "Path of the archive to create.")
	flags.StringVar(&format, "format", string(contracts.FormatZip), "Archive format: zip, tar.gz or tar.zst.")
	flags.IntVar(&config.Level, "level", 6, "Compression level.")
	if err = flags.Parse(args); err != nil {
		return contracts.PackConfig{}, err
	}

	if config.SourceDirectory == "" {
		return contracts.PackConfig{}, blankSourceDirectoryErr
	}
	if config.OutputPath == "" {
		return contracts.PackConfig{}, blankOutputPathErr
	}
	parsed, ok := contracts.ParseArchiveFormat(format)
	if !ok || parsed == contracts.FormatUnknown {
		return contracts.PackConfig{}, fmt.Errorf("%w: %q", unsupportedPackFormatErr, format)
	}
	config.Format = parsed
	return config, nil
}

func (this *ConfigLoader) validateFlags(config contracts.InstallConfig) error {
	if config.SpecPath == "" {
		return blankSpecPathErr
	}
	if config.MaxRetry < 0 {
		return maxRetryErr
	}
	if config.Timeout <= 0 {
		return timeoutErr
	}
	if config.MaxArtifactSize <= 0 || config.MaxEntrySize <= 0 {
		return maxSizeErr
	}
	return nil
}

func (this *ConfigLoader) validatePackageFilter(config contracts.InstallConfig) error {
	for _, name := range config.PackageFilter {
		if !this.listed(config.Listing, name) {
			return fmt.Errorf("%w: %q", unknownPackageErr, name)
		}
	}
	return nil
}

func (this *ConfigLoader) listed(listing contracts.Listing, name string) bool {
	for _, spec := range listing.Packages {
		if spec.Name == name {
			return true
		}
	}
	return false
}

func (this *ConfigLoader) parseListing(path string) (listing contracts.Listing, err error) {
	data, err := this.readRawListing(path)
	if err != nil {
		return contracts.Listing{}, err
	}
	if isYAML(path, data) {
		err = yaml.Unmarshal(data, &listing)
	} else {
		err = json.Unmarshal(data, &listing)
	}
	if err != nil {
		return contracts.Listing{}, fmt.Errorf("malformed listing %q: %w", path, err)
	}
	return listing, nil
}

func (this *ConfigLoader) readRawListing(path string) (data []byte, err error) {
	if path == stdinPath {
		return io.ReadAll(this.stdin)
	} else {
		return this.storage.ReadFile(path)
	}
}

// isYAML decides by extension, or by content for stdin (JSON listings are
// objects).
func isYAML(path string, data []byte) bool {
	if path == stdinPath {
		return !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

var (
	maxRetryErr              = errors.New("max-retry must be positive")
	timeoutErr               = errors.New("timeout must be positive")
	maxSizeErr               = errors.New("max-size and max-entry-size must be positive")
	blankSpecPathErr         = errors.New("spec flag must be populated")
	unknownPackageErr        = errors.New("package not found in listing")
	blankSourceDirectoryErr  = errors.New("source directory should not be blank")
	blankOutputPathErr       = errors.New("output path should not be blank")
	unsupportedPackFormatErr = errors.New("unsupported archive format")
)

