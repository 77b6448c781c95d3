package main

import (
	"io"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progressBar renders transcription progress on a terminal
type progressBar struct {
	p       *mpb.Progress
	bar     *mpb.Bar
	message atomic.Pointer[string]
}

func newProgressBar(out io.Writer) *progressBar {
	pb := &progressBar{p: mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))}
	start := "Starting..."
	pb.message.Store(&start)

	pb.bar = pb.p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name("Transcribing: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string { return *pb.message.Load() }),
		),
	)
	return pb
}

func (pb *progressBar) update(percent float64, message string) {
	pb.message.Store(&message)
	pb.bar.SetCurrent(int64(percent))
}

// wait flushes the bar. An unfinished bar is aborted so Wait returns.
func (pb *progressBar) wait() {
	if !pb.bar.Completed() {
		pb.bar.Abort(false)
	}
	pb.p.Wait()
}
