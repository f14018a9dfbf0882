package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rewardLedger/internal/model"
)

// JsonlSink streams contract events as one JSON object per line.
type JsonlSink struct {
	buf     *bufio.Writer
	enc     *json.Encoder
	closer  io.Closer
	written int
}

// NewJsonlSink writes to w. The caller owns w; Close only flushes.
func NewJsonlSink(w io.Writer) *JsonlSink {
	buf := bufio.NewWriter(w)
	return &JsonlSink{buf: buf, enc: json.NewEncoder(buf)}
}

// CreateJsonlFile truncates or creates path, including missing parent
// directories, and returns a sink that closes the file on Close.
func CreateJsonlFile(path string) (*JsonlSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	sink := NewJsonlSink(file)
	sink.closer = file
	return sink, nil
}

// Write encodes events in order.
func (s *JsonlSink) Write(events []model.ContractEvent) error {
	for _, event := range events {
		if err := s.enc.Encode(event); err != nil {
			return fmt.Errorf("encode event %s/%d: %w", event.TxHash, event.LogIndex, err)
		}
		s.written++
	}
	return nil
}

// Written reports how many events have been encoded.
func (s *JsonlSink) Written() int { return s.written }

func (s *JsonlSink) Close() error {
	err := s.buf.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
