package paypal

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/shop-api/internal/domain/order"
)

// decodeCheckoutOrder extracts the fields needed for settlement from a
// "Show order details" response. Only the first purchase unit is considered.
func decodeCheckoutOrder(data []byte) (*order.Capture, error) {
	var c order.Capture
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			c.ID, err = d.Str()
		case "status":
			c.Status, err = d.Str()
		case "update_time":
			c.UpdateTime, err = d.Str()
		case "payer":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "email_address" {
					return d.Skip()
				}
				v, err := d.Str()
				c.PayerEmail = v
				return err
			})
		case "purchase_units":
			first := true
			err = d.Arr(func(d *jx.Decoder) error {
				if !first {
					return d.Skip()
				}
				first = false
				return decodePurchaseUnit(d, &c)
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if c.ID == "" {
		return nil, errors.New("missing order id")
	}
	return &c, nil
}

func decodePurchaseUnit(d *jx.Decoder, c *order.Capture) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "amount" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "value":
				c.Amount, err = d.Str()
			case "currency_code":
				c.Currency, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	})
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	d := jx.DecodeBytes(body)
	// Error bodies are best effort; a malformed one still yields the status.
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name", "error":
			apiErr.Name, err = d.Str()
		case "message", "error_description":
			apiErr.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return apiErr
}
