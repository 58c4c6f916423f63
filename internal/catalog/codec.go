package catalog

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// EncodeProduct writes p in the catalog wire format.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("_id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("slug", func(e *jx.Encoder) { e.Str(p.Slug) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { e.Raw([]byte(p.Price.StringFixed(2))) })
		e.Field("countInStock", func(e *jx.Encoder) { e.Int(p.CountInStock) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("images", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, img := range p.Images {
					e.Str(img)
				}
			})
		})
		e.Field("rating", func(e *jx.Encoder) { e.Float64(p.Rating) })
		e.Field("numReviews", func(e *jx.Encoder) { e.Int(p.NumReviews) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	})
}

// EncodeProducts writes products as a JSON array.
func EncodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			EncodeProduct(e, p)
		}
	})
}

// EncodeError writes the error body returned by the catalog API.
func EncodeError(e *jx.Encoder, code int, message string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
}

// DecodeProduct parses a single product. Unknown fields and nulls are skipped.
func DecodeProduct(data []byte) (*product.Product, error) {
	var p product.Product
	if err := decodeProduct(jx.DecodeBytes(data), &p); err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return &p, nil
}

// DecodeProducts parses a JSON array of products.
func DecodeProducts(data []byte) ([]product.Product, error) {
	var out []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := decodeProduct(d, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder, p *product.Product) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}

		var err error
		switch string(key) {
		case "_id", "id":
			p.ID, err = d.Str()
		case "slug":
			p.Slug, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "countInStock":
			p.CountInStock, err = d.Int()
			if err == nil && p.CountInStock < 0 {
				err = errors.Errorf("negative countInStock %d", p.CountInStock)
			}
		case "image":
			p.Image, err = d.Str()
		case "images":
			err = d.Arr(func(d *jx.Decoder) error {
				img, err := d.Str()
				if err != nil {
					return err
				}
				p.Images = append(p.Images, img)
				return nil
			})
		case "rating":
			p.Rating, err = d.Float64()
		case "numReviews":
			p.NumReviews, err = d.Int()
		case "description":
			p.Description, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(string(n))
}

// decodeErrorMessage extracts the "message" field of an API error body. It
// returns "" if the body is not such an object.
func decodeErrorMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "message" && d.Next() == jx.String {
			v, err := d.Str()
			msg = v
			return err
		}
		return d.Skip()
	})
	return msg
}
