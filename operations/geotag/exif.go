package geotag

import (
	"context"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/sfomuseum/go-media-geotag/geo"
	"github.com/sfomuseum/go-media-geotag/telemetry"
	"gocloud.dev/blob"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// remember these datetime formats are Go's internal cray-cray
// for working with time...
const exif_fmt = "2006:01:02 15:04:05"

type exifInfo struct {
	taken       time.Time
	lat         float64
	lon         float64
	has_gps     bool
	alt         *float64
	angle       *float64
	orientation int
	camera_make string
	model       string
}

// readImageEXIF decodes the EXIF block of the image at key. A missing or
// unparseable capture time is a ParseError; missing GPS tags are not, since
// an external track may supply the position.
func readImageEXIF(ctx context.Context, bucket *blob.Bucket, key string) (*exifInfo, error) {

	im_fh, err := bucket.NewReader(ctx, key, nil)

	if err != nil {
		return nil, &telemetry.ParseError{Source: "exif", Message: "failed to open image", Err: err}
	}

	defer im_fh.Close()

	exif_data, err := exif.Decode(im_fh)

	if err != nil {
		return nil, &telemetry.ParseError{Source: "exif", Message: "failed to decode EXIF block", Err: err}
	}

	info := &exifInfo{}

	tag, err := exif_data.Get(exif.DateTimeOriginal)

	if err != nil {
		tag, err = exif_data.Get(exif.DateTime)
	}

	if err != nil {
		return nil, &telemetry.ParseError{Source: "exif", Message: "no capture time recorded"}
	}

	str_dt, err := tag.StringVal()

	if err != nil {
		return nil, &telemetry.ParseError{Source: "exif", Message: "invalid capture time", Err: err}
	}

	taken, err := time.Parse(exif_fmt, str_dt)

	if err != nil {
		return nil, &telemetry.ParseError{Source: "exif", Message: "invalid capture time", Err: err}
	}

	info.taken = taken.UTC()

	lat, lon, err := exif_data.LatLong()

	if err == nil {
		info.lat = lat
		info.lon = lon
		info.has_gps = true
	}

	if tag, err := exif_data.Get(exif.GPSAltitude); err == nil {

		num, den, err := tag.Rat2(0)

		if err == nil && den != 0 {

			alt := float64(num) / float64(den)

			if ref, err := exif_data.Get(exif.GPSAltitudeRef); err == nil {

				if v, err := ref.Int(0); err == nil && v == 1 {
					alt = -alt
				}
			}

			info.alt = geo.Float(alt)
		}
	}

	if tag, err := exif_data.Get(exif.GPSImgDirection); err == nil {

		num, den, err := tag.Rat2(0)

		if err == nil && den != 0 {
			info.angle = geo.Float(geo.NormalizeBearing(float64(num) / float64(den)))
		}
	}

	if tag, err := exif_data.Get(exif.Orientation); err == nil {

		if v, err := tag.Int(0); err == nil {
			info.orientation = v
		}
	}

	if tag, err := exif_data.Get(exif.Make); err == nil {

		if v, err := tag.StringVal(); err == nil {
			info.camera_make = v
		}
	}

	if tag, err := exif_data.Get(exif.Model); err == nil {

		if v, err := tag.StringVal(); err == nil {
			info.model = v
		}
	}

	return info, nil
}
