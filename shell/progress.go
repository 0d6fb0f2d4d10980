package shell

import (
	"io"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var suffixes = [5]string{"B", "KB", "MB", "GB", "TB"}

func round(val float64, roundOn float64, places int) (newVal float64) {
	var round float64
	pow := math.Pow(10, float64(places))
	digit := pow * val
	_, div := math.Modf(digit)
	if div >= roundOn {
		round = math.Ceil(digit)
	} else {
		round = math.Floor(digit)
	}
	newVal = round / pow
	return
}

func HumanFileSize(size float64) string {
	if size < 1 {
		return "0 B"
	}
	base := math.Log(size) / math.Log(1024)
	if base >= float64(len(suffixes)) {
		base = float64(len(suffixes) - 1)
	}
	getSize := round(size/math.Pow(1024, math.Floor(base)), .5, 2)
	getSuffix := suffixes[int(math.Floor(base))]
	return strconv.FormatFloat(getSize, 'f', -1, 64) + " " + getSuffix
}

// ProgressCounter counts the bytes written through it and reports them every
// interval until closed. A negative size means the total is unknown.
type ProgressCounter struct {
	written    atomic.Int64
	total      string
	onProgress func(written, total string)
	ticker     *time.Ticker
	done       chan struct{}
	once       sync.Once
}

func NewProgressCounter(size int64, interval time.Duration, onProgress func(written, total string)) *ProgressCounter {
	total := "unknown"
	if size >= 0 {
		total = HumanFileSize(float64(size))
	}
	this := &ProgressCounter{total: total, onProgress: onProgress}
	this.ticker = time.NewTicker(interval)
	this.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-this.ticker.C:
				this.reportProgress()
			case <-this.done:
				return
			}
		}
	}()
	return this
}

func (this *ProgressCounter) Write(p []byte) (n int, e error) {
	n = len(p)
	this.written.Add(int64(n))
	return n, nil
}

func (this *ProgressCounter) Written() int64 {
	return this.written.Load()
}

func (this *ProgressCounter) Close() error {
	this.once.Do(func() {
		this.ticker.Stop()
		close(this.done)
	})
	return nil
}

func (this *ProgressCounter) reportProgress() {
	this.onProgress(HumanFileSize(float64(this.written.Load())), this.total)
}

var _ io.WriteCloser = new(ProgressCounter)
