package resource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
	"github.com/nerrad567/venue-core/internal/storage"
)

// BannerBucket holds uploaded banner images.
const BannerBucket = "banners-images"

// Banner columns.
const (
	tableBanners       = "banners"
	colBannerImagePath = "banner_image_path"
	colImageURL        = "image_url"
	colActive          = "active"
	colExpirationDate  = "expiration_date"
)

// exactExpiry are the parameters of an exact expiration date match, which
// takes precedence over a range.
var exactExpiry = []string{"expiration_date", "expirationDate"}

// Body fields carrying a banner image: a base64 string (optionally a data
// URL) in JSON bodies, or a file part in multipart bodies.
const (
	fieldImageBase64 = "image_base64"
	fieldImageFile   = "image"
)

var errImagesDisabled = errors.New("image upload is not configured")

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// bannerImages uploads banner images and computes their public URLs.
type bannerImages struct {
	store storage.ObjectStorage
	now   func() time.Time
}

// decorate adds image_url, null when the banner has no image.
func (b *bannerImages) decorate(row datastore.Row) datastore.Row {
	path := row.String(colBannerImagePath)
	if path == "" || b.store == nil {
		row[colImageURL] = nil
		return row
	}
	row[colImageURL] = b.store.PublicURL(BannerBucket, path)
	return row
}

// validate rejects a body whose image cannot be stored, so no banner row
// is written for it.
func (b *bannerImages) validate(body function.ParsedBody) error {
	data, _, err := imageFromBody(body)
	if err != nil {
		return err
	}
	if data != nil && b.store == nil {
		return errImagesDisabled
	}
	return nil
}

// attach uploads the image found in body, if any, and records its path on
// the banner row.
func (b *bannerImages) attach(ctx context.Context, store datastore.Store, row datastore.Row, body function.ParsedBody) (datastore.Row, error) {
	data, contentType, err := imageFromBody(body)
	if err != nil || data == nil {
		return row, err
	}
	if b.store == nil {
		return nil, errImagesDisabled
	}

	id := row.String(colID)
	path := fmt.Sprintf("%s/%s-uploaded-image.jpg", id, strconv.FormatInt(b.now().UnixMilli(), 10))
	if err := b.store.Upload(ctx, BannerBucket, path, data, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	q := datastore.From(tableBanners).Eq(colID, id)
	updated, err := datastore.UpdateOne(ctx, store, q, datastore.Row{colBannerImagePath: path})
	if err != nil {
		return nil, fmt.Errorf("recording image path: %w", err)
	}
	return updated, nil
}

// imageFromBody returns the image bytes carried by body, or nil.
func imageFromBody(body function.ParsedBody) ([]byte, string, error) {
	if f, ok := body[fieldImageFile].(*function.File); ok && len(f.Data) > 0 {
		contentType := f.ContentType
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = "image/jpeg"
		}
		return f.Data, contentType, nil
	}

	s, ok := body[fieldImageBase64].(string)
	if !ok || s == "" {
		return nil, "", nil
	}
	data, err := base64.StdEncoding.DecodeString(dataURLPrefix.ReplaceAllString(s, ""))
	if err != nil {
		return nil, "", fmt.Errorf("image_base64 is not valid base64: %w", err)
	}
	return data, "image/jpeg", nil
}

// bannersDefinition describes the banners function. Images are stored in
// objects; a nil objects disables uploads and image URLs.
func bannersDefinition(objects storage.ObjectStorage, now func() time.Time) *Definition {
	images := &bannerImages{store: objects, now: now}
	return &Definition{
		Name:  tableBanners,
		Label: "banner",
		Fields: []Field{
			{Name: "name", Kind: KindText},
			{Name: "redirect_link", Kind: KindText},
			{Name: colBannerImagePath, Kind: KindText},
			{Name: colActive, Kind: KindBool},
			{Name: colExpirationDate, Kind: KindTime},
			{Name: colMaxClicks, Kind: KindInt},
			{Name: colCurrentClicks, Kind: KindInt},
			{Name: colMaxDisplays, Kind: KindInt},
			{Name: colCurrentDisplays, Kind: KindInt},
		},
		Filters: []ListFilter{
			{Params: []string{"active"}, Column: colActive, Op: datastore.OpEq, Kind: KindBool},
			{Params: exactExpiry, Column: colExpirationDate, Op: datastore.OpEq, Kind: KindTime},
			{Params: []string{"expiration_date_from", "expirationDateFrom", "exporationDateFrom"}, Column: colExpirationDate, Op: datastore.OpGte, Kind: KindTime, SkippedBy: exactExpiry},
			{Params: []string{"expiration_date_to", "expirationDateTo"}, Column: colExpirationDate, Op: datastore.OpLte, Kind: KindTime, SkippedBy: exactExpiry},
		},
		SearchColumn: "redirect_link",
		Defaults: datastore.Row{
			colCurrentClicks:   int64(0),
			colCurrentDisplays: int64(0),
		},
		Decorate:    images.decorate,
		BeforeWrite: images.validate,
		AfterWrite:  images.attach,
	}
}
