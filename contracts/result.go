package contracts

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

type InstalledFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type InstallResult struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Status  Status          `json:"status"`
	Paths   []string        `json:"paths"`
	Files   []InstalledFile `json:"files,omitempty"`
	Stage   Stage           `json:"stage,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

func (this InstallResult) Succeeded() bool { return this.Status == StatusSuccess }

func (this InstallResult) String() string {
	if this.Succeeded() {
		return fmt.Sprintf("[%s @ %s] installed: %s", this.Name, this.Version, strings.Join(this.Paths, ", "))
	}
	return fmt.Sprintf("[%s @ %s] failed at %s stage: %s", this.Name, this.Version, this.Stage, this.Detail)
}
