package handlers

import (
	"time"

	"ontrack-driver/internal/domain"
	"ontrack-driver/internal/queue"
)

type stateDTO struct {
	IsNotStarted      bool   `json:"is_not_started"`
	IsDispatched      bool   `json:"is_dispatched"`
	IsInProgress      bool   `json:"is_in_progress"`
	IsCompleted       bool   `json:"is_completed"`
	IsCanceled        bool   `json:"is_canceled"`
	OnBreak           bool   `json:"on_break"`
	IsOrderPing       bool   `json:"is_order_ping"`
	CanNavigate       bool   `json:"can_navigate"`
	CanSetDestination bool   `json:"can_set_destination"`
	Destination       string `json:"destination,omitempty"`
}

type orderViewDTO struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Pending   string    `json:"pending"`
	State     stateDTO  `json:"state"`
	Total     int64     `json:"total"`
	Currency  string    `json:"currency"`
}

type activityReqDTO struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	Details    string `json:"details"`
	RequirePOD bool   `json:"require_pod"`
}

type startReqDTO struct {
	Assign       string `json:"assign"`
	SkipDispatch bool   `json:"skip_dispatch"`
}

type queueItemDTO struct {
	Op        string    `json:"op"`
	OrderID   string    `json:"order_id"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toStateDTO(st domain.State) stateDTO {
	out := stateDTO{
		IsNotStarted:      st.IsNotStarted,
		IsDispatched:      st.IsDispatched,
		IsInProgress:      st.IsInProgress,
		IsCompleted:       st.IsCompleted,
		IsCanceled:        st.IsCanceled,
		OnBreak:           st.OnBreak,
		IsOrderPing:       st.IsOrderPing,
		CanNavigate:       st.CanNavigate,
		CanSetDestination: st.CanSetDestination,
	}
	if st.CurrentDestination != nil {
		out.Destination = st.CurrentDestination.PublicID
	}
	return out
}

func toOrderViewDTO(o *domain.Order, pending string) orderViewDTO {
	return orderViewDTO{
		ID:        o.ID,
		Status:    string(o.Status),
		UpdatedAt: o.UpdatedAt,
		Pending:   pending,
		State:     toStateDTO(domain.Project(o)),
		Total:     o.Total(),
		Currency:  o.Currency(),
	}
}

func toQueueItemDTOs(items []queue.Request) []queueItemDTO {
	out := make([]queueItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, queueItemDTO{
			Op:        string(it.Op),
			OrderID:   it.OrderID,
			Action:    it.Action,
			CreatedAt: it.CreatedAt,
		})
	}
	return out
}

func toDomainActivity(dto activityReqDTO) domain.Activity {
	return domain.Activity{
		Code:       dto.Code,
		Status:     dto.Status,
		Details:    dto.Details,
		RequirePOD: dto.RequirePOD,
	}
}
