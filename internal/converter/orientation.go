package converter

import (
	"errors"
	"fmt"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// EXIF orientation values that describe a pure rotation.
const (
	orientationRotate180 = 3
	orientationRotate90  = 6
	orientationRotate270 = 8
)

// ReadRotation returns the clockwise rotation, in degrees, that turns the
// stored pixels upright: 0, 90, 180 or 270. It only parses the EXIF block
// and never decodes pixels. Mirrored, normal, unknown and missing
// orientations all yield 0. An error is returned alongside 0 when metadata
// is present but unreadable; callers treat that image as upright.
func ReadRotation(data []byte) (int, error) {
	orientation, err := readOrientation(data)
	if err != nil {
		return 0, err
	}
	return rotationFor(orientation), nil
}

func rotationFor(orientation uint16) int {
	switch orientation {
	case orientationRotate180:
		return 180
	case orientationRotate90:
		return 90
	case orientationRotate270:
		return 270
	default:
		return 0
	}
}

// readOrientation returns the raw EXIF orientation tag, or 1 when the
// source carries no EXIF data or no orientation tag.
func readOrientation(data []byte) (orientation uint16, err error) {
	// go-exif reports some malformed IFDs by panicking.
	defer func() {
		if r := recover(); r != nil {
			orientation, err = 0, fmt.Errorf("parse exif: %v", r)
		}
	}()

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return 1, nil
		}
		return 0, fmt.Errorf("search exif: %w", err)
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 0, fmt.Errorf("load ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return 0, fmt.Errorf("collect exif: %w", err)
	}

	tags, err := index.RootIfd.FindTagWithName("Orientation")
	if err != nil {
		if errors.Is(err, exif.ErrTagNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("find orientation tag: %w", err)
	}
	if len(tags) == 0 {
		return 1, nil
	}

	val, err := tags[0].Value()
	if err != nil {
		return 0, fmt.Errorf("read orientation value: %w", err)
	}
	shorts, ok := val.([]uint16)
	if !ok || len(shorts) == 0 {
		return 0, fmt.Errorf("unexpected orientation value type %T", val)
	}
	return shorts[0], nil
}
