package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// badRequestError is a malformed or invalid request body.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// decodeJSON decodes exactly one JSON object into v, rejecting unknown
// fields and trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if dec.More() {
		return badRequest("invalid request body: trailing data")
	}
	return nil
}

// money renders an amount as a JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// handleError maps domain errors to API errors. Payment integrity failures
// get fixed messages; the details stay in the logs.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq      *badRequestError
		invalidQty  *order.InvalidQuantityError
		tooLarge    *order.OrderTooLargeError
		noProduct   *order.ProductNotFoundError
		notVerified *order.PaymentNotVerifiedError
		duplicate   *order.DuplicateTransactionError
		alreadyPaid *order.AlreadyPaidError
		mismatch    *order.AmountMismatchError
		invalid     *product.InvalidFieldError
	)
	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.msg)
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, "no order items")
	case errors.As(err, &invalidQty):
		writeError(w, http.StatusUnprocessableEntity, invalidQty.Error())
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusUnprocessableEntity, "order total exceeds the maximum amount")
	case errors.As(err, &noProduct):
		writeError(w, http.StatusUnprocessableEntity, noProduct.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &notVerified):
		writeError(w, http.StatusPaymentRequired, "payment not verified")
	case errors.As(err, &duplicate):
		writeError(w, http.StatusConflict, "transaction has already been used")
	case errors.As(err, &alreadyPaid):
		writeError(w, http.StatusConflict, "order is already paid")
	case errors.As(err, &mismatch):
		writeError(w, http.StatusUnprocessableEntity, "paid amount does not match order total")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, product.ErrAlreadyReviewed):
		writeError(w, http.StatusBadRequest, "product already reviewed")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
