package core

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
)

func TestHashReaderFixture(t *testing.T) {
	gunit.Run(new(HashReaderFixture), t)
}

type HashReaderFixture struct {
	*gunit.Fixture
}

func (this *HashReaderFixture) Test() {
	stuff := strings.Repeat("Hello, World!", 1024)
	expected := md5.New()
	expected.Write([]byte(stuff))
	data := strings.NewReader(stuff)
	hasher := md5.New()

	_, _ = io.ReadAll(NewHashReader(data, hasher))

	this.So(hasher.Sum(nil), should.Resemble, expected.Sum(nil))
}

func (this *HashReaderFixture) TestCountAndChecksum() {
	stuff := strings.Repeat("usearch", 100)
	expected := sha256.Sum256([]byte(stuff))
	reader := NewHashReader(strings.NewReader(stuff), sha256.New())

	_, _ = io.Copy(io.Discard, reader)

	this.So(reader.Count(), should.Equal, int64(len(stuff)))
	this.So(reader.Checksum(), should.Equal, hex.EncodeToString(expected[:]))
}
