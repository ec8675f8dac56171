package orders

import (
	"encoding/json"
	"time"

	"ontrack-driver/internal/domain"
)

// Wire DTOs for the order service REST payloads. Field names follow the
// service's snake_case contract; mapping to domain types happens here and
// nowhere else.

type orderDTO struct {
	ID               string              `json:"id"`
	InternalID       string              `json:"internal_id"`
	Status           string              `json:"status"`
	Adhoc            bool                `json:"adhoc"`
	DriverAssigned   *driverRefDTO       `json:"driver_assigned"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	ScheduledAt      *time.Time          `json:"scheduled_at"`
	DispatchedAt     *time.Time          `json:"dispatched_at"`
	StartedAt        *time.Time          `json:"started_at"`
	EstimatedEndDate *time.Time          `json:"estimated_end_date"`
	Payload          payloadDTO          `json:"payload"`
	TrackingStatuses []trackingStatusDTO `json:"tracking_statuses"`
	PurchaseRate     *purchaseRateDTO    `json:"purchase_rate"`
	Meta             map[string]any      `json:"meta"`
	Notes            string              `json:"notes"`
}

type driverRefDTO struct {
	ID string `json:"id"`
}

type payloadDTO struct {
	Pickup          *placeDTO   `json:"pickup"`
	Dropoff         *placeDTO   `json:"dropoff"`
	Waypoints       []placeDTO  `json:"waypoints"`
	CurrentWaypoint string      `json:"current_waypoint"`
	Entities        []entityDTO `json:"entities"`
}

type placeDTO struct {
	ID       string      `json:"id"`
	PublicID string      `json:"place_public_id"`
	Address  string      `json:"address"`
	Location locationDTO `json:"location"`
	Tracking string      `json:"tracking"`
}

type locationDTO struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type entityDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
}

type trackingStatusDTO struct {
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type purchaseRateDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type activityDTO struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	Details    string `json:"details"`
	RequirePOD bool   `json:"require_pod"`
}

func toDomainOrder(dto orderDTO) *domain.Order {
	o := &domain.Order{
		ID:               dto.ID,
		InternalID:       dto.InternalID,
		Status:           domain.NormalizeStatus(dto.Status),
		Adhoc:            dto.Adhoc,
		CreatedAt:        dto.CreatedAt,
		UpdatedAt:        dto.UpdatedAt,
		ScheduledAt:      dto.ScheduledAt,
		DispatchedAt:     dto.DispatchedAt,
		StartedAt:        dto.StartedAt,
		EstimatedEndDate: dto.EstimatedEndDate,
		CurrentWaypoint:  dto.Payload.CurrentWaypoint,
		Meta:             dto.Meta,
		Notes:            dto.Notes,
	}
	if dto.DriverAssigned != nil {
		o.DriverAssigned = dto.DriverAssigned.ID
	}
	o.Pickup = toDomainPlacePtr(dto.Payload.Pickup)
	o.Dropoff = toDomainPlacePtr(dto.Payload.Dropoff)
	for _, wp := range dto.Payload.Waypoints {
		o.Waypoints = append(o.Waypoints, toDomainPlace(wp))
	}
	for _, e := range dto.Payload.Entities {
		o.Entities = append(o.Entities, domain.Entity(e))
	}
	for _, ts := range dto.TrackingStatuses {
		o.TrackingStatuses = append(o.TrackingStatuses, domain.TrackingStatus(ts))
	}
	if dto.PurchaseRate != nil {
		pr := domain.PurchaseRate(*dto.PurchaseRate)
		o.PurchaseRate = &pr
	}
	return o
}

func toDomainPlace(dto placeDTO) domain.Place {
	return domain.Place{
		ID:       dto.ID,
		PublicID: dto.PublicID,
		Address:  dto.Address,
		Location: domain.Point{Coordinates: dto.Location.Coordinates},
		Tracking: dto.Tracking,
	}
}

func toDomainPlacePtr(dto *placeDTO) *domain.Place {
	if dto == nil {
		return nil
	}
	p := toDomainPlace(*dto)
	return &p
}

func toDomainActivity(dto activityDTO) domain.Activity {
	return domain.Activity{
		Code:       dto.Code,
		Status:     dto.Status,
		Details:    dto.Details,
		RequirePOD: dto.RequirePOD,
	}
}

// decodeActivities accepts both shapes the next-activity endpoint produces:
// a single activity object or an array of candidates.
func decodeActivities(raw json.RawMessage) ([]domain.Activity, error) {
	var many []activityDTO
	if err := json.Unmarshal(raw, &many); err == nil {
		out := make([]domain.Activity, 0, len(many))
		for _, a := range many {
			out = append(out, toDomainActivity(a))
		}
		return out, nil
	}
	var one activityDTO
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []domain.Activity{toDomainActivity(one)}, nil
}
