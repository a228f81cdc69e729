package extract

import (
	"context"
	"fmt"
	"os"
	"sync"
)

type job struct {
	ctx         context.Context
	archivePath string
	destDir     string
	done        chan error
}

// Pool runs extractions on a fixed set of worker goroutines so a slow or
// large unpack never stalls the download side of the pipeline. Extraction
// capacity is independent of the download concurrency cap.
type Pool struct {
	extractor Extractor
	jobs      chan job

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts workers goroutines serving extraction jobs.
func NewPool(workers int, extractor Extractor) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{
		extractor: extractor,
		jobs:      make(chan job),
	}

	for w := 0; w < workers; w++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.done <- p.run(j.ctx, j.archivePath, j.destDir)
	}
}

// run unpacks one archive and removes it afterwards. The archive is
// deleted only after a fully successful unpack; a failed extraction
// leaves the source file on disk so a later run can try again.
func (p *Pool) run(ctx context.Context, archivePath, destDir string) error {
	ok, err := p.extractor.CanExtract(archivePath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a valid %s archive", archivePath, p.extractor.Name())
	}

	if _, err := p.extractor.Extract(ctx, archivePath, destDir); err != nil {
		return err
	}

	if err := os.Remove(archivePath); err != nil {
		return fmt.Errorf("remove extracted archive %s: %w", archivePath, err)
	}

	return nil
}

// Extract submits an archive to the pool and blocks until a worker has
// processed it or ctx is cancelled while waiting for a free worker.
func (p *Pool) Extract(ctx context.Context, archivePath, destDir string) error {
	j := job{ctx: ctx, archivePath: archivePath, destDir: destDir, done: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- j:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-j.done:
		return err
	}
}

// Close stops accepting jobs and waits for in-flight extractions.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
