package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SimelweN/rebooked-backend/pkg/config"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/types"
)

var errAPIKeyRequired = errors.New("courier api key is required")

// CourierGuyClient talks to the Courier Guy shipment API. It is the primary
// pickup provider.
type CourierGuyClient struct {
	httpClient  *http.Client
	labelClient *http.Client
	baseURL     string
	apiKey      string
}

// NewCourierGuyClient validates the credentials and builds the client.
func NewCourierGuyClient(cfg config.CourierConfig) (*CourierGuyClient, error) {
	apiKey := strings.TrimSpace(cfg.CourierGuyAPIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	return &CourierGuyClient{
		httpClient:  &http.Client{Timeout: cfg.BookingTimeout},
		labelClient: &http.Client{Timeout: cfg.LabelTimeout},
		baseURL:     strings.TrimRight(cfg.CourierGuyBaseURL, "/"),
		apiKey:      apiKey,
	}, nil
}

// Name implements Provider.
func (c *CourierGuyClient) Name() enums.CourierProvider {
	return enums.CourierProviderCourierGuy
}

type courierGuyAddress struct {
	StreetAddress string `json:"street_address"`
	LocalArea     string `json:"local_area,omitempty"`
	City          string `json:"city"`
	Zone          string `json:"zone"`
	Code          string `json:"code"`
	Country       string `json:"country"`
}

type courierGuyShipmentRequest struct {
	CollectionAddress courierGuyAddress  `json:"collection_address"`
	DeliveryAddress   courierGuyAddress  `json:"delivery_address"`
	CollectionContact string             `json:"collection_contact"`
	DeliveryContact   string             `json:"delivery_contact"`
	DeliveryPhone     string             `json:"delivery_phone,omitempty"`
	CollectionDate    string             `json:"collection_min_date"`
	CustomerReference string             `json:"customer_reference"`
	DeclaredValue     float64            `json:"declared_value"`
	Parcels           []courierGuyParcel `json:"parcels"`
}

type courierGuyParcel struct {
	Description string  `json:"parcel_description"`
	WeightKg    float64 `json:"submitted_weight_kg"`
}

type courierGuyShipmentResponse struct {
	TrackingReference string `json:"short_tracking_reference"`
	LabelURL          string `json:"label_url"`
	CollectionDate    string `json:"collection_min_date"`
}

func courierGuyAddressFrom(addr types.Address) courierGuyAddress {
	return courierGuyAddress{
		StreetAddress: addr.Street,
		LocalArea:     addr.Suburb,
		City:          addr.City,
		Zone:          addr.Province,
		Code:          addr.PostalCode,
		Country:       addr.Country,
	}
}

// BookPickup implements Provider against the shipment creation endpoint.
func (c *CourierGuyClient) BookPickup(ctx context.Context, parcel ParcelRequest) (*Booking, error) {
	body := courierGuyShipmentRequest{
		CollectionAddress: courierGuyAddressFrom(parcel.Pickup),
		DeliveryAddress:   courierGuyAddressFrom(parcel.Delivery),
		CollectionContact: parcel.SenderName,
		DeliveryContact:   parcel.ReceiverName,
		DeliveryPhone:     parcel.ReceiverPhone,
		CollectionDate:    parcel.PickupDate.Format("2006-01-02"),
		CustomerReference: parcel.Reference,
		DeclaredValue:     parcel.DeclaredValueRands(),
		Parcels: []courierGuyParcel{{
			Description: parcel.Description,
			WeightKg:    parcel.WeightKg,
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/shipments", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build shipment request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "courier-guy shipment request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, dependencyStatusError("courier-guy", resp)
	}

	var shipment courierGuyShipmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&shipment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipment response")
	}
	if shipment.TrackingReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier-guy returned no tracking reference")
	}

	pickupDate := parcel.PickupDate
	if shipment.CollectionDate != "" {
		if parsed, err := time.Parse("2006-01-02", shipment.CollectionDate); err == nil {
			pickupDate = parsed
		}
	}

	return &Booking{
		Provider:       enums.CourierProviderCourierGuy,
		TrackingNumber: shipment.TrackingReference,
		LabelURL:       shipment.LabelURL,
		PickupDate:     pickupDate,
	}, nil
}

// DownloadLabel implements Provider. The label URL comes from the booking
// response and may be short-lived.
func (c *CourierGuyClient) DownloadLabel(ctx context.Context, labelURL string) ([]byte, error) {
	return downloadLabel(ctx, c.labelClient, labelURL, "Bearer "+c.apiKey)
}

func downloadLabel(ctx context.Context, client *http.Client, labelURL, authHeader string) ([]byte, error) {
	if strings.TrimSpace(labelURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, labelURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build label request")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download label")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("label download returned %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read label body")
	}
	return data, nil
}

func dependencyStatusError(provider string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s returned %d", provider, resp.StatusCode)).
		WithDetails(map[string]any{"http_status": resp.StatusCode, "body": string(snippet)})
}
