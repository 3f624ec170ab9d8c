package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/juju/ratelimit"

	"github.com/sequtils/refserve/fasta"
	slog "github.com/sequtils/refserve/log"
)

// serveSequence is the entrypoint for sequence fetches. The path component
// is the record name; start and length query parameters (both or neither)
// select a subsequence in base coordinates. A bare name that isn't an exact
// header match is resolved through unique-prefix lookup before giving up.
func (s *refserve) serveSequence(w http.ResponseWriter, r *http.Request, name string) {
	start := time.Now()

	if _, err := s.ref.Entry(name); err == fasta.ErrNotFound {
		resolved, err := s.ref.SequenceNameStartingWith(name)
		if err == fasta.ErrAmbiguous {
			s.serveError(w, name, http.StatusMultipleChoices, err)
			return
		}

		if resolved == "" {
			s.serveNotFound(w)
			return
		}
		name = resolved
	}

	seq, err := s.fetch(r, name)
	switch {
	case err == fasta.ErrNotFound:
		s.serveNotFound(w)
		return
	case err == fasta.ErrInvalidArgument || err == errBadQuery:
		s.serveError(w, name, http.StatusBadRequest, err)
		return
	case err != nil:
		s.serveError(w, name, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", s.config.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(seq)))

	writer := io.Writer(w)
	if s.downloadRateLimitBucket != nil {
		writer = ratelimit.Writer(w, s.downloadRateLimitBucket)
	}

	if _, err := io.WriteString(writer, seq); err != nil {
		// We already wrote a 200 OK, so not much we can do here except log.
		slog.Printf("Error streaming response for /%s: %s", name, err)
	}

	if s.stats != nil {
		s.stats.Incr("queries", nil, 1)
		s.stats.Timing("query_time", time.Since(start), nil, 1)
	}
}

var errBadQuery = errors.New("start and length must both be integers, or both absent")

func (s *refserve) fetch(r *http.Request, name string) (string, error) {
	query := r.URL.Query()
	rawStart, rawLength := query.Get("start"), query.Get("length")
	if rawStart == "" && rawLength == "" {
		return s.ref.Sequence(name)
	}

	start, err := strconv.Atoi(rawStart)
	if err != nil {
		return "", errBadQuery
	}

	length, err := strconv.Atoi(rawLength)
	if err != nil {
		return "", errBadQuery
	}

	return s.ref.SubSequence(name, start, length)
}

func (s *refserve) serveNotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

func (s *refserve) serveError(w http.ResponseWriter, name string, status int, err error) {
	w.WriteHeader(status)
	slog.LogWithKVs(&slog.KeyValue{
		"msg":    "error serving query",
		"name":   name,
		"status": strconv.Itoa(status),
		"error":  err.Error(),
	})

	if s.stats != nil {
		s.stats.Incr("query_errors", nil, 1)
	}
}

type sequenceStatus struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Offset   int64  `json:"offset"`
	LineBlen int    `json:"line_blen"`
	LineLen  int    `json:"line_len"`
}

type status struct {
	Reference string           `json:"reference"`
	Sequences []sequenceStatus `json:"sequences"`
}

// serveStatus lists the reference path and every indexed record, in file
// order.
func (s *refserve) serveStatus(w http.ResponseWriter, r *http.Request) {
	st := status{
		Reference: s.ref.Path,
		Sequences: make([]sequenceStatus, 0, len(s.ref.Index)),
	}

	for _, entry := range s.ref.Index {
		st.Sequences = append(st.Sequences, sequenceStatus{
			Name:     entry.Name,
			Length:   entry.Length,
			Offset:   entry.Offset,
			LineBlen: entry.LineBlen,
			LineLen:  entry.LineLen,
		})
	}

	sort.Slice(st.Sequences, func(i, j int) bool {
		return st.Sequences[i].Offset < st.Sequences[j].Offset
	})

	jsonBytes, err := json.Marshal(&st)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonBytes)
}

func (s *refserve) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
