// Package scan turns a frame-by-frame QR decoder into a single scan event.
package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNoCode is returned by a Decoder when the current frame holds no code.
// Poll treats it as noise and keeps going.
var ErrNoCode = errors.New("no code in frame")

// Decoder attempts to read one code from the next available frame.
type Decoder interface {
	Decode(ctx context.Context) (string, error)
}

// Event is delivered once per successful scan.
type Event struct {
	Token     string
	ScannedAt time.Time
}

// Poll calls d every interval until it yields a token, then stops.
// It returns ctx.Err() when cancelled and aborts on any error other than ErrNoCode.
func Poll(ctx context.Context, d Decoder, interval time.Duration) (Event, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		token, err := d.Decode(ctx)
		switch {
		case err == nil && strings.TrimSpace(token) != "":
			return Event{Token: strings.TrimSpace(token), ScannedAt: time.Now()}, nil
		case err == nil, errors.Is(err, ErrNoCode):
		default:
			return Event{}, fmt.Errorf("decode frame: %w", err)
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// LineDecoder reads tokens from a keyboard-wedge scanner, one per line.
// Blank lines count as misses.
type LineDecoder struct {
	sc *bufio.Scanner
}

func NewLineDecoder(r io.Reader) *LineDecoder {
	return &LineDecoder{sc: bufio.NewScanner(r)}
}

func (d *LineDecoder) Decode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(d.sc.Text())
	if line == "" {
		return "", ErrNoCode
	}
	return line, nil
}
