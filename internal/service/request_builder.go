package service

import (
	"context"
	"strings"

	"github.com/customs-screening-pipeline/internal/media"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/screening"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxImageFetches = 4

// requestBuilder turns a validated package into a screening request
type requestBuilder struct {
	fetcher media.Fetcher
	log     zerolog.Logger
}

func newRequestBuilder(fetcher media.Fetcher, log zerolog.Logger) *requestBuilder {
	return &requestBuilder{fetcher: fetcher, log: log}
}

// Build assembles the request. Images are fetched and encoded; images that
// cannot be fetched are dropped and never fail the row.
func (b *requestBuilder) Build(ctx context.Context, rec *models.PackageRecord) *screening.ScreeningRequest {
	req := &screening.ScreeningRequest{
		ExternalID:         rec.ExternalID,
		HouseBillNumber:    rec.HouseBillNumber,
		Barcode:            rec.Barcode,
		PlatformID:         rec.PlatformID,
		SellerID:           rec.SellerID,
		ExportCountry:      rec.ExportCountry,
		DestinationCountry: rec.DestinationCountry,
		Weight:             rec.Weight,
		WeightUnit:         rec.WeightUnit,
		EntryType:          rec.EntryType,
		TransportMode:      rec.TransportMode,
		CarrierID:          rec.CarrierID,
		ShipDate:           rec.ShipDate,
		Shipper:            party(rec.Shipper),
		Consignee:          party(rec.Consignee),
		Products:           make([]screening.ProductItem, 0, len(rec.Products)),
	}

	for _, p := range rec.Products {
		req.Products = append(req.Products, screening.ProductItem{
			SKU:           p.SKU,
			Name:          p.Name,
			Description:   p.Description,
			URL:           p.URL,
			Quantity:      p.Quantity,
			DeclaredValue: p.DeclaredValue,
			ListPrice:     p.ListPrice,
			OriginCountry: p.OriginCountry,
			HSCode:        p.HSCode,
			EANUPC:        p.EANUPC,
			Pieces:        p.Pieces,
			Normalize:     p.Normalize,
			Categories:    p.Categories,
			Images:        b.images(ctx, rec.ExternalID, p),
		})
	}

	return req
}

// images fetches every image reference of a product concurrently and keeps
// the successful ones in reference order.
func (b *requestBuilder) images(ctx context.Context, externalID string, p models.Product) []string {
	refs := imageRefs(p)
	if len(refs) == 0 || b.fetcher == nil {
		return nil
	}

	encoded := make([]string, len(refs))
	var g errgroup.Group
	g.SetLimit(maxImageFetches)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			data, err := b.fetcher.FetchAndEncode(ctx, ref)
			if err != nil {
				b.log.Warn().Err(err).
					Str("external_id", externalID).
					Str("image", truncate(ref, 120)).
					Msg("Dropping product image")
				return nil
			}
			encoded[i] = data
			return nil
		})
	}
	g.Wait()

	images := make([]string, 0, len(encoded))
	for _, data := range encoded {
		if data != "" {
			images = append(images, data)
		}
	}
	if len(images) == 0 {
		return nil
	}
	return images
}

// imageRefs lists the image source entries followed by the numbered slots.
// The image source holds one reference or a list separated by pipes, or by
// commas when it has no pipe.
func imageRefs(p models.Product) []string {
	var refs []string
	if src := strings.TrimSpace(p.ImageSource); src != "" {
		if strings.Contains(src, "|") {
			for _, ref := range strings.Split(src, "|") {
				if ref = strings.TrimSpace(ref); ref != "" {
					refs = append(refs, ref)
				}
			}
		} else {
			refs = splitCommaRefs(src)
		}
	}
	for _, ref := range p.ImageSlots {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// splitCommaRefs splits a comma separated list only where a new reference
// starts. Commas inside a URL path or between a data URI header and its
// payload stay part of the reference.
func splitCommaRefs(src string) []string {
	var refs []string
	for _, piece := range strings.Split(src, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if n := len(refs); n > 0 && !startsRef(piece) && continuesRef(refs[n-1]) {
			refs[n-1] += "," + piece
			continue
		}
		refs = append(refs, piece)
	}
	return refs
}

func startsRef(s string) bool {
	return media.IsRemote(s) || strings.HasPrefix(s, "data:")
}

// continuesRef reports whether a following comma belongs to ref: a URL, or
// a data URI still missing its payload
func continuesRef(ref string) bool {
	if strings.HasPrefix(ref, "data:") {
		return !strings.Contains(ref, ",")
	}
	return media.IsRemote(ref)
}

func party(a models.Address) screening.Party {
	return screening.Party{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
		Email:      a.Email,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
