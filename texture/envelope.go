package texture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"time"
)

// EnvelopeType is the message type the robot uses for panoramas.
const EnvelopeType = "panoramic_image"

var (
	ErrNotPanorama     = errors.New("envelope is not a panoramic image")
	ErrUnsupportedMime = errors.New("unsupported panorama mime type")
)

// Envelope is the robot message carrying a panorama.
type Envelope struct {
	Type      string  `json:"type"`
	RobotID   string  `json:"robotId"`
	Payload   Payload `json:"payload"`
	Timestamp int64   `json:"timestamp"`
}

// Payload is the panorama part of an Envelope. Data is base64 JPEG.
type Payload struct {
	Mime        string `json:"mime"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Data        string `json:"data"`
	CaptureTime int64  `json:"captureTime"` // Unix milliseconds
}

// ReadEnvelope parses and validates a panorama envelope.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Type != EnvelopeType {
		return Envelope{}, fmt.Errorf("%w: type %q", ErrNotPanorama, env.Type)
	}
	if env.Payload.Mime != "image/jpeg" {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnsupportedMime, env.Payload.Mime)
	}
	return env, nil
}

// Decode decodes the JPEG carried in the payload.
func (e Envelope) Decode() (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Payload.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return img, nil
}

// Metadata returns the display facts announced by the envelope. The capture
// time falls back to the message timestamp.
func (e Envelope) Metadata() Metadata {
	ms := e.Payload.CaptureTime
	if ms == 0 {
		ms = e.Timestamp
	}
	md := Metadata{
		Width:  e.Payload.Width,
		Height: e.Payload.Height,
	}
	if ms != 0 {
		md.CaptureTime = time.UnixMilli(ms)
	}
	return md
}

// OpenEnvelope reads the envelope stored at path.
func OpenEnvelope(path string) (Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return Envelope{}, err
	}
	defer f.Close()
	return ReadEnvelope(f)
}

// EnvelopeLoader returns a loader that decodes env's payload.
func EnvelopeLoader(env Envelope) func(context.Context) (image.Image, error) {
	return func(ctx context.Context) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return env.Decode()
	}
}
