package core

import (
	"errors"
	"strings"

	"github.com/smartystreets/gcs"

	"github.com/smarty/prebuilt/contracts"
)

type CredentialParser struct {
	storage     contracts.FileReader
	environment contracts.Environment
}

func NewGoogleCredentialParser(storage contracts.FileReader, environment contracts.Environment) CredentialParser {
	return CredentialParser{storage: storage, environment: environment}
}

func (this CredentialParser) Parse() (*gcs.Credentials, error) {
	googleCredentialsPath, found := this.environment.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	googleCredentialsPath = strings.TrimSpace(googleCredentialsPath)
	if !found || googleCredentialsPath == "" {
		return nil, errMissingCredentialsPath
	}
	data, err := this.storage.ReadFile(googleCredentialsPath)
	if err != nil {
		return nil, err
	}
	credentials, err := gcs.ParseCredentialsFromJSON(data)
	if err != nil {
		return nil, err
	}
	return &credentials, nil
}

var errMissingCredentialsPath = errors.New("the GOOGLE_APPLICATION_CREDENTIALS is required")
