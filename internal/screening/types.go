package screening

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Screening API endpoints, relative to the configured base URL
const (
	EndpointScreenPackage    = "/packages/screen"
	EndpointRegisterShipment = "/shipments"
	EndpointVerifyShipment   = "/shipments/verify"
	EndpointPlatforms        = "/platforms"
	EndpointPayDuty          = "/duties/pay"
	EndpointSubmitAudit      = "/audits"
)

// Error codes produced by the client itself rather than the API
const (
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeHTTPStatus        = "HTTP_ERROR"
)

// Envelope is the response shape shared by every screening endpoint.
// Raw holds the response body as received.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// ErrorBody is the error part of an envelope
type ErrorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// APIError is returned when the screening API answered but the call did not
// succeed: a non-2xx status, success=false, or an unreadable body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("screening API %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("screening API %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether sending the same request again may succeed.
// Server errors, timeouts, throttling and malformed responses are retryable;
// other 4xx answers and business rejections need a human.
func (e *APIError) Retryable() bool {
	switch {
	case e.Code == CodeMalformedResponse:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// IsRetryable classifies any error returned by the client. Transport
// failures and timeouts carry no APIError and are always retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

// Party is a shipper or consignee in a screening request
type Party struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// ProductItem is one line item in a screening request. Images are base64.
type ProductItem struct {
	SKU           string   `json:"sku"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	Quantity      int      `json:"quantity"`
	DeclaredValue float64  `json:"declaredValue"`
	ListPrice     float64  `json:"listPrice"`
	OriginCountry string   `json:"originCountry"`
	HSCode        string   `json:"hsCode,omitempty"`
	EANUPC        string   `json:"eanUpc,omitempty"`
	Pieces        int      `json:"pieces"`
	Normalize     bool     `json:"normalize"`
	Categories    []string `json:"categories,omitempty"`
	Images        []string `json:"images,omitempty"`
}

// ScreeningRequest is the body of a package screening call
type ScreeningRequest struct {
	ExternalID         string        `json:"externalId"`
	HouseBillNumber    string        `json:"houseBillNumber"`
	Barcode            string        `json:"barcode"`
	PlatformID         string        `json:"platformId"`
	SellerID           string        `json:"sellerId"`
	ExportCountry      string        `json:"exportCountry"`
	DestinationCountry string        `json:"destinationCountry"`
	Weight             float64       `json:"weight"`
	WeightUnit         string        `json:"weightUnit"`
	EntryType          string        `json:"entryType"`
	TransportMode      string        `json:"transportMode"`
	CarrierID          string        `json:"carrierId"`
	ShipDate           string        `json:"shipDate,omitempty"`
	Shipper            Party         `json:"shipper"`
	Consignee          Party         `json:"consignee"`
	Products           []ProductItem `json:"products"`
}

// ScreeningResult is the data part of a successful screening response.
// Raw keeps the full response body.
type ScreeningResult struct {
	PackageID   string            `json:"packageId"`
	ExternalID  string            `json:"externalId"`
	Code        int               `json:"code"`
	Status      string            `json:"status"`
	LabelQRCode string            `json:"labelQrCode,omitempty"`
	Products    []json.RawMessage `json:"products,omitempty"`
	Raw         json.RawMessage   `json:"-"`
}

// DecodeScreeningResult reads the screening verdict out of a successful
// envelope. A missing body or a code outside 1..4 is a malformed response.
func DecodeScreeningResult(env *Envelope) (*ScreeningResult, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &APIError{StatusCode: http.StatusOK, Code: CodeMalformedResponse, Message: "response has no data"}
	}
	var result ScreeningResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Code: CodeMalformedResponse, Message: err.Error()}
	}
	if result.Code < 1 || result.Code > 4 {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Code:       CodeMalformedResponse,
			Message:    fmt.Sprintf("unknown screening code %d", result.Code),
			Details:    env.Data,
		}
	}
	result.Raw = env.Raw
	return &result, nil
}
