package core

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
	"github.com/smarty/prebuilt/shell"
)

func TestPlacementFixture(t *testing.T) {
	gunit.Run(new(PlacementFixture), t)
}

type PlacementFixture struct {
	*gunit.Fixture

	fileSystem *linklessFileSystem
	placement  *placement
}

func (this *PlacementFixture) Setup() {
	this.fileSystem = &linklessFileSystem{InMemoryFileSystem: shell.NewInMemoryFileSystem()}
	this.placement = newPlacement(this.fileSystem, 1024, logging.Capture())
}

func (this *PlacementFixture) stage(name, content string, mappings ...contracts.EntryMapping) error {
	entry := contracts.ArchiveEntry{Name: name, Size: int64(len(content)), Content: strings.NewReader(content)}
	return this.placement.Stage(context.Background(), entry, mappings)
}

func (this *PlacementFixture) TestNothingIsVisibleBeforeCommit() {
	err := this.stage("a.h", "new", contracts.EntryMapping{Name: "a.h", Destination: "/opt/include/a.h"})

	this.So(err, should.BeNil)
	this.So(this.placement.Files(), should.HaveLength, 1)
	_, err = this.fileSystem.Stat("/opt/include/a.h")
	this.So(errors.Is(err, os.ErrNotExist), should.BeTrue)
}

func (this *PlacementFixture) TestBackupFallsBackToCopyWhenLinksAreUnsupported() {
	this.fileSystem.WriteFile("/opt/include/a.h", []byte("old"))
	_ = this.stage("a.h", "new", contracts.EntryMapping{Name: "a.h", Destination: "/opt/include/a.h"})

	this.So(this.placement.Commit(context.Background()), should.BeNil)
	this.So(this.fileSystem.links, should.Equal, 1)
	content, _ := this.fileSystem.ReadFile("/opt/include/a.h")
	this.So(string(content), should.Equal, "new")

	this.So(this.placement.Rollback(), should.BeNil)
	content, _ = this.fileSystem.ReadFile("/opt/include/a.h")
	this.So(string(content), should.Equal, "old")
	this.So(this.fileSystem.Paths(), should.Resemble, []string{"/opt", "/opt/include", "/opt/include/a.h"})
}

func (this *PlacementFixture) TestFinishRemovesBackups() {
	this.fileSystem.WriteFile("/opt/include/a.h", []byte("old"))
	_ = this.stage("a.h", "new", contracts.EntryMapping{Name: "a.h", Destination: "/opt/include/a.h"})
	_ = this.placement.Commit(context.Background())

	files := this.placement.Finish()

	this.So(files, should.Resemble, []contracts.InstalledFile{{Path: "/opt/include/a.h", Size: 3, SHA256: sha256Hex([]byte("new"))}})
	this.So(this.fileSystem.Paths(), should.Resemble, []string{"/opt", "/opt/include", "/opt/include/a.h"})
}

func (this *PlacementFixture) TestDirectoryAtDestinationIsRefused() {
	this.fileSystem.WriteFile("/opt/include/a.h/nested", []byte("x"))
	_ = this.stage("a.h", "new", contracts.EntryMapping{Name: "a.h", Destination: "/opt/include/a.h"})

	err := this.placement.Commit(context.Background())

	this.So(err, should.Wrap, errDestinationIsDirectory)
	this.So(this.placement.Rollback(), should.BeNil)
	this.So(this.fileSystem.Paths(), should.Resemble, []string{"/opt", "/opt/include", "/opt/include/a.h", "/opt/include/a.h/nested"})
}

func (this *PlacementFixture) TestEntryModes() {
	_ = this.stage("tool", "#!/bin/sh", contracts.EntryMapping{Name: "tool", Destination: "/opt/bin/tool", Executable: true})
	entry := contracts.ArchiveEntry{Name: "script", Mode: 0750, Content: strings.NewReader("echo")}
	_ = this.placement.Stage(context.Background(), entry, []contracts.EntryMapping{{Name: "script", Destination: "/opt/bin/script"}})
	_ = this.stage("doc", "text", contracts.EntryMapping{Name: "doc", Destination: "/opt/share/doc"})
	_ = this.placement.Commit(context.Background())

	tool, _ := this.fileSystem.Stat("/opt/bin/tool")
	script, _ := this.fileSystem.Stat("/opt/bin/script")
	doc, _ := this.fileSystem.Stat("/opt/share/doc")
	this.So(tool.Mode(), should.Equal, os.FileMode(0755))
	this.So(script.Mode(), should.Equal, os.FileMode(0750))
	this.So(doc.Mode(), should.Equal, os.FileMode(0644))
}

func (this *PlacementFixture) TestUnknownSizeStillBounded() {
	entry := contracts.ArchiveEntry{Name: "big", Size: -1, Content: strings.NewReader(strings.Repeat("x", 2048))}

	err := this.placement.Stage(context.Background(), entry, []contracts.EntryMapping{{Name: "big", Destination: "/opt/big"}})

	this.So(err, should.Wrap, errEntryTooLarge)
	this.So(this.placement.Rollback(), should.BeNil)
	this.So(this.fileSystem.Paths(), should.BeEmpty)
}

func (this *PlacementFixture) TestWriteFailureIsFilesystemError() {
	this.fileSystem.SetCapacity(2)
	entry := contracts.ArchiveEntry{Name: "a.h", Size: -1, Content: strings.NewReader("too much")}

	err := this.placement.Stage(context.Background(), entry, []contracts.EntryMapping{{Name: "a.h", Destination: "/opt/a.h"}})

	this.So(err, should.Wrap, contracts.ErrFilesystem)
	this.So(this.placement.Rollback(), should.BeNil)
	this.So(this.fileSystem.Paths(), should.BeEmpty)
}

func (this *PlacementFixture) TestCancelledCopy() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	entry := contracts.ArchiveEntry{Name: "a.h", Size: 3, Content: strings.NewReader("new")}

	err := this.placement.Stage(ctx, entry, []contracts.EntryMapping{{Name: "a.h", Destination: "/opt/a.h"}})

	this.So(err, should.Equal, context.Canceled)
	this.So(this.placement.Rollback(), should.BeNil)
	this.So(this.fileSystem.Paths(), should.BeEmpty)
}

///////////////////////////////////////////////////////////////////////////////

// linklessFileSystem behaves like a file system without hard link support.
type linklessFileSystem struct {
	*shell.InMemoryFileSystem
	links int
}

func (this *linklessFileSystem) Link(source, target string) error {
	this.links++
	return &os.LinkError{Op: "link", Old: source, New: target, Err: errors.New("operation not permitted")}
}
