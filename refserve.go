package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/juju/ratelimit"
	"github.com/nightlyone/lockfile"
	"github.com/tylerb/graceful"

	"github.com/sequtils/refserve/fasta"
)

var errIndexLocked = errors.New("failed to acquire index lock")

type refserve struct {
	config refserveConfig
	http   http.Handler
	ref    *fasta.Reference

	stats *statsd.Client

	downloadRateLimitBucket *ratelimit.Bucket
}

func newRefserve(config refserveConfig) *refserve {
	return &refserve{config: config}
}

func (s *refserve) init() error {
	// Start Datadog client if configured
	if s.config.Datadog.Url != "" {
		statsdClient, err := statsd.New(s.config.Datadog.Url)
		if err != nil {
			return fmt.Errorf("error connecting to statsd: %s", err)
		}
		statsdClient.Namespace = "refserve."
		s.stats = statsdClient
	}

	// Create a token bucket if we need download bandwidth throttling
	maxDownloadBandwidth := int64(s.config.MaxDownloadBandwidthMBPerSecond * 1024 * 1024)
	if maxDownloadBandwidth > 0 {
		s.downloadRateLimitBucket = ratelimit.NewBucketWithRate(float64(maxDownloadBandwidth), maxDownloadBandwidth)
	}

	ref, err := openReference(s.config.Reference)
	if err != nil {
		return err
	}
	s.ref = ref

	s.http = trackQueries(s)
	return nil
}

// openReference opens the reference, holding a lockfile beside the index
// while it may be scanned and written, so two processes starting against the
// same fresh reference don't race to build the same index file.
func openReference(path string) (*fasta.Reference, error) {
	lockPath, err := filepath.Abs(path + fasta.IndexExt + ".lock")
	if err != nil {
		return nil, err
	}

	lock, err := lockfile.New(lockPath)
	if err != nil {
		return nil, err
	}

	err = lock.TryLock()
	if err != nil {
		p, err := lock.GetOwner()
		if err == nil {
			log.Printf("The index for %s is locked by process %d", path, p.Pid)
		}

		return nil, errIndexLocked
	}
	defer lock.Unlock()

	return fasta.Open(path)
}

func (s *refserve) start() {
	defer s.shutdown()

	log.Println("Listening on", s.config.Bind)
	graceful.Run(s.config.Bind, s.config.ShutdownTimeout.Duration, s.http)
}

func (s *refserve) shutdown() {
	log.Println("Shutting down...")
	s.ref.Close()
}

func (s *refserve) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.URL.Path == "/" {
		s.serveStatus(w, r)
		return
	}

	if r.URL.Path == "/healthz" {
		s.serveHealth(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.serveSequence(w, r, name)
}
