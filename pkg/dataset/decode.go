package dataset

import (
	"context"

	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/processing"
	"github.com/menta2k/srgan-data/pkg/tfrecord"
	"github.com/menta2k/srgan-data/pkg/types"
)

// ErrDecode marks a record that is malformed, incomplete or not decodable to
// a 3-channel image pair.
var ErrDecode = errors.New("decode error")

// Feature keys of the tf.train.Example records.
const (
	KeyName           = "image/img_name"
	KeyHighResEncoded = "image/hr_encoded"
	KeyLowResEncoded  = "image/lr_encoded"
	KeyHighResPath    = "image/high_res_img_path"
	KeyLowResPath     = "image/low_res_img_path"
)

const requiredChannels = processing.Channels

// Codec turns encoded payloads or files into images.
// processing.Processor is the default implementation.
type Codec interface {
	Decode(data []byte) (types.Image, error)
	Load(ctx context.Context, path string) (types.Image, error)
}

// Decode produces the paired sample described by rec. In Embedded mode the
// images are decoded from the record payloads, in Paths mode they are read
// from the referenced files.
func Decode(ctx context.Context, rec types.Record, mode types.DecodeMode, codec Codec) (types.PairedSample, error) {
	if rec.Name == "" {
		return types.PairedSample{}, errors.Wrapf(ErrDecode, "record is missing %s", KeyName)
	}

	var low, high types.Image
	var err error
	switch mode {
	case types.Embedded:
		if len(rec.LowResBytes) == 0 {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: record is missing %s", rec.Name, KeyLowResEncoded)
		}
		if len(rec.HighResBytes) == 0 {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: record is missing %s", rec.Name, KeyHighResEncoded)
		}
		if low, err = codec.Decode(rec.LowResBytes); err != nil {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: low-res image: %v", rec.Name, err)
		}
		if high, err = codec.Decode(rec.HighResBytes); err != nil {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: high-res image: %v", rec.Name, err)
		}
	case types.Paths:
		if rec.LowResPath == "" {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: record is missing %s", rec.Name, KeyLowResPath)
		}
		if rec.HighResPath == "" {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: record is missing %s", rec.Name, KeyHighResPath)
		}
		if low, err = codec.Load(ctx, rec.LowResPath); err != nil {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: low-res image %s: %v", rec.Name, rec.LowResPath, err)
		}
		if high, err = codec.Load(ctx, rec.HighResPath); err != nil {
			return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: high-res image %s: %v", rec.Name, rec.HighResPath, err)
		}
	default:
		return types.PairedSample{}, errors.Wrapf(ErrDecode, "unknown decode mode %v", mode)
	}

	if low.Channels != requiredChannels || high.Channels != requiredChannels {
		return types.PairedSample{}, errors.Wrapf(ErrDecode, "%q: expected %d channels, got low-res %d and high-res %d",
			rec.Name, requiredChannels, low.Channels, high.Channels)
	}
	return types.PairedSample{Name: rec.Name, LowRes: low, HighRes: high}, nil
}

// RecordFromExample extracts whichever record fields the example carries.
// Missing fields are left empty and reported later by Decode.
func RecordFromExample(ex *tfrecord.Example) types.Record {
	var rec types.Record
	if v, ok := ex.FirstBytes(KeyName); ok {
		rec.Name = string(v)
	}
	if v, ok := ex.FirstBytes(KeyHighResEncoded); ok {
		rec.HighResBytes = v
	}
	if v, ok := ex.FirstBytes(KeyLowResEncoded); ok {
		rec.LowResBytes = v
	}
	if v, ok := ex.FirstBytes(KeyHighResPath); ok {
		rec.HighResPath = string(v)
	}
	if v, ok := ex.FirstBytes(KeyLowResPath); ok {
		rec.LowResPath = string(v)
	}
	return rec
}

// ExampleFromRecord is the inverse of RecordFromExample. Only non-empty fields
// are written, so a record built for one mode stays small.
func ExampleFromRecord(rec types.Record) *tfrecord.Example {
	ex := tfrecord.NewExample()
	ex.SetString(KeyName, rec.Name)
	if len(rec.HighResBytes) > 0 {
		ex.SetBytes(KeyHighResEncoded, rec.HighResBytes)
	}
	if len(rec.LowResBytes) > 0 {
		ex.SetBytes(KeyLowResEncoded, rec.LowResBytes)
	}
	if rec.HighResPath != "" {
		ex.SetString(KeyHighResPath, rec.HighResPath)
	}
	if rec.LowResPath != "" {
		ex.SetString(KeyLowResPath, rec.LowResPath)
	}
	return ex
}
