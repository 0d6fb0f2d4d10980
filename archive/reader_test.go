package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	kzip "github.com/klauspost/compress/zip"
	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"

	"github.com/smarty/prebuilt/contracts"
)

func TestReaderFixture(t *testing.T) {
	gunit.Run(new(ReaderFixture), t)
}

type ReaderFixture struct {
	*gunit.Fixture

	contents map[string]string
	order    []string
}

func (this *ReaderFixture) Setup() {
	this.order = []string{"usearch.h", "lib/libusearch_c.a", "README.md"}
	this.contents = map[string]string{
		"usearch.h":          "#pragma once\n",
		"lib/libusearch_c.a": string(bytes.Repeat([]byte{0, 1, 2, 3}, 4096)),
		"README.md":          "not installed",
	}
}

func (this *ReaderFixture) build(format contracts.ArchiveFormat) []byte {
	buffer := new(bytes.Buffer)
	writer, err := NewWriter(buffer, format, 0)
	this.So(err, should.BeNil)
	for _, name := range this.order {
		content := this.contents[name]
		err = writer.WriteHeader(contracts.ArchiveHeader{
			Name:       name,
			Size:       int64(len(content)),
			ModTime:    time.Now(),
			Executable: name == "usearch.h",
		})
		this.So(err, should.BeNil)
		_, err = io.WriteString(writer, content)
		this.So(err, should.BeNil)
	}
	this.So(writer.Close(), should.BeNil)
	return buffer.Bytes()
}

func (this *ReaderFixture) readAll(raw []byte, declared contracts.ArchiveFormat) (map[string]string, map[string]contracts.ArchiveEntry, error) {
	reader, err := Open(newFakeArtifact(raw), declared)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = reader.Close() }()

	contents := make(map[string]string)
	entries := make(map[string]contracts.ArchiveEntry)
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return contents, entries, nil
		}
		if err != nil {
			return contents, entries, err
		}
		content, err := io.ReadAll(entry.Content)
		if err != nil {
			return contents, entries, err
		}
		contents[entry.Name] = string(content)
		entries[entry.Name] = entry
	}
}

func (this *ReaderFixture) TestEachFormatYieldsEveryEntry() {
	for _, format := range []contracts.ArchiveFormat{
		contracts.FormatZip, contracts.FormatTar, contracts.FormatTarGzip, contracts.FormatTarZstd,
	} {
		contents, entries, err := this.readAll(this.build(format), contracts.FormatUnknown)

		this.So(err, should.BeNil)
		this.So(contents, should.Resemble, this.contents)
		this.So(entries["usearch.h"].IsRegular(), should.BeTrue)
		this.So(entries["usearch.h"].Mode, should.Equal, os.FileMode(0755))
		this.So(entries["README.md"].Mode, should.Equal, os.FileMode(0644))
		this.So(entries["lib/libusearch_c.a"].Size, should.Equal, int64(4*4096))
	}
}

func (this *ReaderFixture) TestDeclaredFormatMayUseAnAlias() {
	contents, _, err := this.readAll(this.build(contracts.FormatTarGzip), "tgz")

	this.So(err, should.BeNil)
	this.So(contents, should.Resemble, this.contents)
}

func (this *ReaderFixture) TestRoundTripOfMatchedEntriesReproducesIdenticalBytes() {
	original, _, err := this.readAll(this.build(contracts.FormatZip), contracts.FormatZip)
	this.So(err, should.BeNil)

	delete(this.contents, "README.md")
	this.order = []string{"usearch.h", "lib/libusearch_c.a"}
	for name := range this.contents {
		this.contents[name] = original[name]
	}
	rebuilt, _, err := this.readAll(this.build(contracts.FormatTarGzip), contracts.FormatTarGzip)

	this.So(err, should.BeNil)
	this.So(rebuilt["usearch.h"], should.Equal, original["usearch.h"])
	this.So(rebuilt["lib/libusearch_c.a"], should.Equal, original["lib/libusearch_c.a"])
	this.So(rebuilt, should.HaveLength, 2)
}

func (this *ReaderFixture) TestDeclaredFormatMustMatchContent() {
	_, _, err := this.readAll(this.build(contracts.FormatTarGzip), contracts.FormatZip)

	this.So(errors.Is(err, contracts.ErrCorruptArchive), should.BeTrue)
	this.So(err.Error(), should.ContainSubstring, "content is tar.gz")
}

func (this *ReaderFixture) TestUnknownDeclaredFormat() {
	_, _, err := this.readAll(this.build(contracts.FormatZip), "rar")

	this.So(errors.Is(err, contracts.ErrCorruptArchive), should.BeTrue)
}

func (this *ReaderFixture) TestUnrecognizedContentIsCorrupt() {
	_, _, err := this.readAll([]byte("<html>404 not found</html>"), contracts.FormatUnknown)

	this.So(errors.Is(err, contracts.ErrCorruptArchive), should.BeTrue)
}

func (this *ReaderFixture) TestTruncatedArchiveIsCorrupt() {
	for _, format := range []contracts.ArchiveFormat{contracts.FormatZip, contracts.FormatTarGzip, contracts.FormatTarZstd} {
		raw := this.build(format)

		_, _, err := this.readAll(raw[:len(raw)/2], contracts.FormatUnknown)

		this.So(errors.Is(err, contracts.ErrCorruptArchive), should.BeTrue)
	}
}

func (this *ReaderFixture) TestParentDirectoryTraversalIsRejected() {
	archives := map[contracts.ArchiveFormat][]byte{
		contracts.FormatTarGzip: this.buildRawTarGz(&tar.Header{Name: "../../etc/passwd", Mode: 0644, Size: 4, Typeflag: tar.TypeReg}, "root"),
		contracts.FormatZip:     this.buildRawZip("../../etc/passwd", "root"),
	}
	for format, raw := range archives {
		_, _, err := this.readAll(raw, format)

		this.So(errors.Is(err, contracts.ErrUnsafeArchiveEntry), should.BeTrue)
	}
}

func (this *ReaderFixture) TestAbsoluteEntryIsRejected() {
	raw := this.buildRawTarGz(&tar.Header{Name: "/etc/passwd", Mode: 0644, Size: 4, Typeflag: tar.TypeReg}, "root")

	_, _, err := this.readAll(raw, contracts.FormatTarGzip)

	this.So(errors.Is(err, contracts.ErrUnsafeArchiveEntry), should.BeTrue)
}

func (this *ReaderFixture) TestDirectoriesAndSymlinksAreReportedAsSuch() {
	buffer := new(bytes.Buffer)
	writer := tar.NewWriter(buffer)
	this.So(writer.WriteHeader(&tar.Header{Name: "include/", Mode: 0755, Typeflag: tar.TypeDir}), should.BeNil)
	this.So(writer.WriteHeader(&tar.Header{Name: "include/link.h", Linkname: "usearch.h", Typeflag: tar.TypeSymlink}), should.BeNil)
	this.So(writer.Close(), should.BeNil)

	_, entries, err := this.readAll(buffer.Bytes(), contracts.FormatTar)

	this.So(err, should.BeNil)
	this.So(entries["include"].IsDirectory(), should.BeTrue)
	this.So(entries["include/link.h"].Type, should.Equal, contracts.EntrySymlink)
}

///////////////////////////////////////////////////////////////////////////////

func TestSniffFixture(t *testing.T) {
	gunit.Run(new(SniffFixture), t)
}

type SniffFixture struct {
	*gunit.Fixture
}

func (this *SniffFixture) TestMagicBytes() {
	tarHeader := make([]byte, 512)
	copy(tarHeader[257:], "ustar\x0000")

	this.So(sniffBytes([]byte("PK\x03\x04rest")), should.Equal, contracts.FormatZip)
	this.So(sniffBytes([]byte("PK\x05\x06")), should.Equal, contracts.FormatZip)
	this.So(sniffBytes([]byte{0x1f, 0x8b, 0x08}), should.Equal, contracts.FormatTarGzip)
	this.So(sniffBytes([]byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}), should.Equal, contracts.FormatTarZstd)
	this.So(sniffBytes(tarHeader), should.Equal, contracts.FormatTar)
	this.So(sniffBytes([]byte("PK")), should.Equal, contracts.FormatUnknown)
	this.So(sniffBytes(nil), should.Equal, contracts.FormatUnknown)
}

func (this *SniffFixture) TestShortInputIsNotAnError() {
	format, err := Sniff(bytes.NewReader([]byte{0x1f, 0x8b}))

	this.So(err, should.BeNil)
	this.So(format, should.Equal, contracts.FormatTarGzip)
}

///////////////////////////////////////////////////////////////////////////////

func TestGuardFixture(t *testing.T) {
	gunit.Run(new(GuardFixture), t)
}

type GuardFixture struct {
	*gunit.Fixture
}

func (this *GuardFixture) TestSafeNames() {
	for raw, expected := range map[string]string{
		"usearch.h":             "usearch.h",
		"./include/usearch.h":   "include/usearch.h",
		"lib/../usearch.h":      "usearch.h",
		"include\\usearch.h":    "include/usearch.h",
		"include/":              "include",
		"a/b/../../c/usearch.h": "c/usearch.h",
	} {
		name, err := SafeName(raw)
		this.So(err, should.BeNil)
		this.So(name, should.Equal, expected)
	}
}

func (this *GuardFixture) TestUnsafeNames() {
	for _, raw := range []string{
		"../../etc/passwd",
		"..",
		"lib/../../passwd",
		"..\\..\\windows\\system32",
		"/etc/passwd",
		"\\etc\\passwd",
		"C:\\windows\\system32",
		"c:/windows",
		"usearch.h\x00.txt",
	} {
		_, err := SafeName(raw)
		this.So(errors.Is(err, contracts.ErrUnsafeArchiveEntry), should.BeTrue)
	}
}

///////////////////////////////////////////////////////////////////////////////

type fakeArtifact struct{ *bytes.Reader }

func newFakeArtifact(raw []byte) *fakeArtifact { return &fakeArtifact{Reader: bytes.NewReader(raw)} }
func (this *fakeArtifact) Close() error       { return nil }

func (this *ReaderFixture) buildRawZip(name, content string) []byte {
	buffer := new(bytes.Buffer)
	writer := kzip.NewWriter(buffer)
	file, err := writer.Create(name)
	this.So(err, should.BeNil)
	_, err = io.WriteString(file, content)
	this.So(err, should.BeNil)
	this.So(writer.Close(), should.BeNil)
	return buffer.Bytes()
}

func (this *ReaderFixture) buildRawTarGz(header *tar.Header, content string) []byte {
	buffer := new(bytes.Buffer)
	compressor := gzip.NewWriter(buffer)
	writer := tar.NewWriter(compressor)
	this.So(writer.WriteHeader(header), should.BeNil)
	_, err := io.WriteString(writer, content)
	this.So(err, should.BeNil)
	this.So(writer.Close(), should.BeNil)
	this.So(compressor.Close(), should.BeNil)
	return buffer.Bytes()
}
