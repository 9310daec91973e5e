package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SimelweN/rebooked-backend/pkg/config"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/types"
)

// FastwayClient talks to the Fastway consignment API. It is the fallback
// pickup provider when Courier Guy declines or times out.
type FastwayClient struct {
	httpClient  *http.Client
	labelClient *http.Client
	baseURL     string
	apiKey      string
}

// NewFastwayClient validates the credentials and builds the client.
func NewFastwayClient(cfg config.CourierConfig) (*FastwayClient, error) {
	apiKey := strings.TrimSpace(cfg.FastwayAPIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	return &FastwayClient{
		httpClient:  &http.Client{Timeout: cfg.BookingTimeout},
		labelClient: &http.Client{Timeout: cfg.LabelTimeout},
		baseURL:     strings.TrimRight(cfg.FastwayBaseURL, "/"),
		apiKey:      apiKey,
	}, nil
}

// Name implements Provider.
func (c *FastwayClient) Name() enums.CourierProvider {
	return enums.CourierProviderFastway
}

type fastwayAddress struct {
	Address1 string `json:"address1"`
	Suburb   string `json:"suburb,omitempty"`
	City     string `json:"city"`
	Province string `json:"province"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type fastwayConsignmentRequest struct {
	Reference    string         `json:"reference"`
	PickupFrom   fastwayAddress `json:"pickup_address"`
	DeliverTo    fastwayAddress `json:"delivery_address"`
	ContactName  string         `json:"contact_name"`
	ContactPhone string         `json:"contact_phone,omitempty"`
	PickupDate   string         `json:"pickup_date"`
	Items        []fastwayItem  `json:"items"`
}

type fastwayItem struct {
	Description string  `json:"description"`
	WeightKg    float64 `json:"weight_kg"`
	Value       float64 `json:"value"`
}

type fastwayConsignmentResponse struct {
	LabelNumber string `json:"label_number"`
	LabelURL    string `json:"label_url"`
}

func fastwayAddressFrom(addr types.Address) fastwayAddress {
	return fastwayAddress{
		Address1: addr.Street,
		Suburb:   addr.Suburb,
		City:     addr.City,
		Province: addr.Province,
		Postcode: addr.PostalCode,
		Country:  addr.Country,
	}
}

// BookPickup implements Provider against the consignment creation endpoint.
func (c *FastwayClient) BookPickup(ctx context.Context, parcel ParcelRequest) (*Booking, error) {
	body := fastwayConsignmentRequest{
		Reference:    parcel.Reference,
		PickupFrom:   fastwayAddressFrom(parcel.Pickup),
		DeliverTo:    fastwayAddressFrom(parcel.Delivery),
		ContactName:  parcel.ReceiverName,
		ContactPhone: parcel.ReceiverPhone,
		PickupDate:   parcel.PickupDate.Format("2006-01-02"),
		Items: []fastwayItem{{
			Description: parcel.Description,
			WeightKg:    parcel.WeightKg,
			Value:       parcel.DeclaredValueRands(),
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode consignment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v4/consignments", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build consignment request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fastway consignment request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, dependencyStatusError("fastway", resp)
	}

	var consignment fastwayConsignmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&consignment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode consignment response")
	}
	if consignment.LabelNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fastway returned no label number")
	}

	return &Booking{
		Provider:       enums.CourierProviderFastway,
		TrackingNumber: consignment.LabelNumber,
		LabelURL:       consignment.LabelURL,
		PickupDate:     parcel.PickupDate,
	}, nil
}

// DownloadLabel implements Provider.
func (c *FastwayClient) DownloadLabel(ctx context.Context, labelURL string) ([]byte, error) {
	return downloadLabel(ctx, c.labelClient, labelURL, "")
}
